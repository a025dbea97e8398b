package importer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/apperrors"
)

// RunState is the externally visible state of an import kind.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
)

// RunFunc performs one import run, accumulating into result. A returned error
// is the run's fatal error (parse failure or escalated write failure);
// non-fatal errors belong in the result, not the return value.
type RunFunc func(ctx context.Context, result *Result) error

// Orchestrator owns the run lifecycle for every import kind: the single-flight
// guard, per-kind status, and retention of the last result. At most one run
// per kind may be in flight; concurrent triggers are rejected, not queued.
type Orchestrator struct {
	maxErrors int
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]bool
	last    map[string]*Result
}

// NewOrchestrator creates the process-wide import orchestrator.
func NewOrchestrator(maxErrors int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		maxErrors: maxErrors,
		logger:    logger.Named("import-orchestrator"),
		running:   make(map[string]bool),
		last:      make(map[string]*Result),
	}
}

// Run executes fn under the single-flight guard for source. The check and the
// transition to running happen under one lock acquisition, so two concurrent
// triggers can never both observe idle. Returns apperrors.ErrImportInProgress
// immediately when a run for source is already in flight.
//
// The run's result is always returned, frozen, even when fn reports a fatal
// error: partial counts from committed batches survive run-level failure. The
// guard is released before the result is returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, source string, fn RunFunc) (*Result, error) {
	o.mu.Lock()
	if o.running[source] {
		o.mu.Unlock()
		o.logger.Warn("Import trigger rejected, run already in flight",
			zap.String("source", source))
		return nil, apperrors.ErrImportInProgress
	}
	o.running[source] = true
	o.mu.Unlock()

	result := NewResult(source, o.maxErrors)
	o.logger.Info("Import run started", zap.String("source", source))

	fatalErr := fn(ctx, result)
	result.Complete()

	o.mu.Lock()
	delete(o.running, source)
	o.last[source] = result
	o.mu.Unlock()

	if fatalErr != nil {
		o.logger.Error("Import run failed",
			zap.String("source", source),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
			zap.Error(fatalErr))
		return result, fatalErr
	}

	o.logger.Info("Import run completed",
		zap.String("source", source),
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("errors", result.Errors()),
		zap.Int64("duration_seconds", result.DurationSeconds()))
	return result, nil
}

// Status reports whether a run for source is in flight.
func (o *Orchestrator) Status(source string) RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[source] {
		return StateRunning
	}
	return StateIdle
}

// LastResult returns the most recent completed result for source, if any.
func (o *Orchestrator) LastResult(source string) (*Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result, ok := o.last[source]
	return result, ok
}
