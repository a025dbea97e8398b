package importer

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultMaxErrorDetails bounds the error list retained on a result when the
// caller does not configure a limit.
const DefaultMaxErrorDetails = 200

// Result accumulates counters for one import run. It is owned exclusively by
// the orchestrator while the run is in flight, then frozen and retained as the
// last result for its source until the next run overwrites it.
type Result struct {
	Source      string    `json:"source"`
	Total       int       `json:"total"`
	Created     int       `json:"imported"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// ErrorDetails is bounded; once full, further errors only bump the counter.
	ErrorDetails []string `json:"errorDetails"`

	errorCount int
	maxErrors  int
}

// NewResult creates a running result for the given source tag.
func NewResult(source string, maxErrors int) *Result {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrorDetails
	}
	return &Result{
		Source:    source,
		StartedAt: time.Now(),
		maxErrors: maxErrors,
	}
}

// AddError records a non-fatal error with record context.
func (r *Result) AddError(err error) {
	r.errorCount++
	if len(r.ErrorDetails) < r.maxErrors {
		r.ErrorDetails = append(r.ErrorDetails, err.Error())
	}
}

// AddErrorf records a non-fatal error built from a format string.
func (r *Result) AddErrorf(format string, args ...any) {
	r.errorCount++
	if len(r.ErrorDetails) < r.maxErrors {
		r.ErrorDetails = append(r.ErrorDetails, fmt.Sprintf(format, args...))
	}
}

// Errors returns the total number of errors recorded, including any that were
// dropped from ErrorDetails by the bound.
func (r *Result) Errors() int {
	return r.errorCount
}

// Complete stamps the completion time.
func (r *Result) Complete() {
	r.CompletedAt = time.Now()
}

// DurationSeconds returns the elapsed run time in whole seconds.
func (r *Result) DurationSeconds() int64 {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return int64(r.CompletedAt.Sub(r.StartedAt).Seconds())
}

// SuccessRate returns the percentage of records created or updated.
func (r *Result) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Created+r.Updated) * 100.0 / float64(r.Total)
}

// MarshalJSON adds the computed summary fields expected by result consumers.
func (r *Result) MarshalJSON() ([]byte, error) {
	type alias Result
	details := r.ErrorDetails
	if details == nil {
		details = []string{}
	}
	return json.Marshal(struct {
		*alias
		ErrorDetails    []string `json:"errorDetails"`
		Errors          int      `json:"errors"`
		DurationSeconds int64    `json:"durationSeconds"`
		SuccessRate     float64  `json:"successRate"`
	}{
		alias:           (*alias)(r),
		ErrorDetails:    details,
		Errors:          r.errorCount,
		DurationSeconds: r.DurationSeconds(),
		SuccessRate:     r.SuccessRate(),
	})
}
