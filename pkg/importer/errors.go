package importer

import "fmt"

// ErrorKind classifies import errors by how the orchestrator must react.
type ErrorKind int

const (
	// KindParseFatal means the input was malformed; the whole run aborts.
	KindParseFatal ErrorKind = iota
	// KindValidation means a record is missing a required field; the record is
	// rejected and the run continues.
	KindValidation
	// KindHierarchy means a dangling parent reference or a cycle; the record is
	// kept as an orphan root (or dropped with report) and the run continues.
	KindHierarchy
	// KindAmbiguousMatch means more than one fuzzy-name candidate; the record
	// is rejected, never auto-merged.
	KindAmbiguousMatch
	// KindWriteFailure means a batch-level persistence error; the batch's
	// records are marked failed and no further batches are attempted.
	KindWriteFailure
)

// String returns the error kind name used in error details.
func (k ErrorKind) String() string {
	switch k {
	case KindParseFatal:
		return "parse"
	case KindValidation:
		return "validation"
	case KindHierarchy:
		return "hierarchy"
	case KindAmbiguousMatch:
		return "ambiguous-match"
	case KindWriteFailure:
		return "write"
	default:
		return "unknown"
	}
}

// Error is an import error carrying enough context (record identifier,
// offending field) to act on from a result report.
type Error struct {
	Kind     ErrorKind
	RecordID string
	Field    string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.RecordID != "" && e.Field != "":
		return fmt.Sprintf("[%s %s] %s: %s", e.Kind, e.RecordID, e.Field, msg)
	case e.RecordID != "":
		return fmt.Sprintf("[%s %s] %s", e.Kind, e.RecordID, msg)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborts the whole run.
func (e *Error) Fatal() bool {
	return e.Kind == KindParseFatal || e.Kind == KindWriteFailure
}

func parseFatal(err error) *Error {
	return &Error{Kind: KindParseFatal, Err: err}
}

func validationError(recordID, field, msg string) *Error {
	return &Error{Kind: KindValidation, RecordID: recordID, Field: field, Msg: msg}
}

func hierarchyError(recordID, msg string) *Error {
	return &Error{Kind: KindHierarchy, RecordID: recordID, Msg: msg}
}
