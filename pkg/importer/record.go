// Package importer contains the import and reconciliation engine: streaming
// XML parsers, two-pass hierarchy resolution, natural-key matching, batched
// writes, and the run orchestrator that ties them together.
package importer

import (
	"io"

	"github.com/google/uuid"
)

// ImportRecord is the generic envelope produced by the stream parsers.
// One record is created per parsed element and is immutable afterwards.
type ImportRecord struct {
	// ExternalID is the source-assigned identifier, required for matching.
	ExternalID string
	// ParentExternalID references another record's ExternalID. Empty (or the
	// GOVMAN sentinel "0") means the record is a root.
	ParentExternalID string
	// SortOrder gives deterministic ordering among siblings.
	SortOrder int
	// Fields maps field names to scalar or concatenated-text values. A parsed
	// element with no text yields an empty string, never a missing key.
	Fields map[string]string
}

// Field returns the named field value, or "" if the parser never saw it.
func (r *ImportRecord) Field(name string) string {
	return r.Fields[name]
}

// HasParent reports whether the record declares a parent reference.
func (r *ImportRecord) HasParent() bool {
	return r.ParentExternalID != "" && r.ParentExternalID != "0"
}

// RecordStream is a pull-based cursor over a single input stream. Next returns
// io.EOF after the last record. A stream is finite and not restartable; open a
// new stream to re-parse.
type RecordStream interface {
	Next() (*ImportRecord, error)
}

// Drain reads a stream to completion and returns all records. Intended for
// inputs that fit comfortably in memory and for the hierarchy resolver, which
// needs the full batch before pass two.
func Drain(stream RecordStream) ([]*ImportRecord, error) {
	var records []*ImportRecord
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// ResolvedNode wraps an ImportRecord with its resolved in-memory parent and
// depth. The resolved graph is acyclic; dangling references are reported and
// the record is kept as an orphan root.
type ResolvedNode struct {
	Record *ImportRecord
	Parent *ResolvedNode
	Depth  int
}

// DecisionKind classifies the action the natural-key matcher chose for a record.
type DecisionKind int

const (
	// DecisionCreate inserts a new entity.
	DecisionCreate DecisionKind = iota
	// DecisionUpdate updates the existing entity identified by ExistingID.
	DecisionUpdate
	// DecisionSkip leaves the existing entity untouched.
	DecisionSkip
	// DecisionReject drops the record with a reported reason.
	DecisionReject
)

// String returns the lowercase decision name for logs and error details.
func (k DecisionKind) String() string {
	switch k {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	case DecisionSkip:
		return "skip"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// MatchDecision is the matcher's verdict for one record. It is never mutated
// after creation.
type MatchDecision struct {
	Kind DecisionKind
	// ExistingID identifies the matched entity for Update and Skip decisions.
	ExistingID uuid.UUID
	// Reason explains Reject decisions.
	Reason string
}
