package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/database"
)

// DefaultBatchSize is the number of records written per transaction, bounding
// transaction size and lock duration.
const DefaultBatchSize = 100

// WriteOutcome reports what a single apply actually did. A unique-constraint
// collision discovered at write time converts an intended create into
// OutcomeSkipped, never a silent overwrite.
type WriteOutcome int

const (
	OutcomeCreated WriteOutcome = iota
	OutcomeUpdated
	OutcomeSkipped
	OutcomeUnchanged
)

// BatchItem pairs a record with its match decision for the writer.
type BatchItem struct {
	Record   *ImportRecord
	Decision MatchDecision
}

// ApplyFunc persists one item inside the batch transaction and reports the
// outcome. Implementations live next to the entity repositories.
type ApplyFunc func(ctx context.Context, tx pgx.Tx, item BatchItem) (WriteOutcome, error)

// RecordWriter applies decided batch items to the store. Satisfied by
// BatchWriter; the import services depend on this surface.
type RecordWriter interface {
	Write(ctx context.Context, items []BatchItem, apply ApplyFunc, onCommit func(), result *Result) error
}

// BatchWriterConfig tunes the batch writer.
type BatchWriterConfig struct {
	BatchSize    int
	WriteTimeout time.Duration
}

// BatchWriter applies decided actions to the store in fixed-size batches.
// Each batch is one atomic transaction: all of its records commit or none do.
// A failed batch does not roll back prior committed batches.
type BatchWriter struct {
	db     *database.DB
	cfg    BatchWriterConfig
	logger *zap.Logger
}

// NewBatchWriter creates a batch writer over the given pool.
func NewBatchWriter(db *database.DB, cfg BatchWriterConfig, logger *zap.Logger) *BatchWriter {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &BatchWriter{db: db, cfg: cfg, logger: logger.Named("batch-writer")}
}

var _ RecordWriter = (*BatchWriter)(nil)

// Write applies all items in batches, accumulating counters into result.
// A batch failure marks that batch's records failed and stops: remaining
// batches are not attempted, already-committed batches stay committed. The
// returned error is the escalated WriteFailure, nil when all batches commit.
// onCommit, when non-nil, runs after each batch commits so callers can
// publish per-batch side state only once it is durable.
func (w *BatchWriter) Write(ctx context.Context, items []BatchItem, apply ApplyFunc, onCommit func(), result *Result) error {
	for start := 0; start < len(items); start += w.cfg.BatchSize {
		end := start + w.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if err := w.writeBatch(ctx, batch, apply, onCommit, result); err != nil {
			result.Failed += len(batch)
			werr := &Error{Kind: KindWriteFailure, Err: err,
				Msg: fmt.Sprintf("batch of %d records aborted", len(batch))}
			result.AddError(werr)
			w.logger.Error("Batch write failed, aborting remaining batches",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			return werr
		}
	}
	return nil
}

func (w *BatchWriter) writeBatch(ctx context.Context, batch []BatchItem, apply ApplyFunc, onCommit func(), result *Result) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
	defer cancel()

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Tentative counts: only folded into the result once the batch commits.
	var created, updated, skipped int
	for _, item := range batch {
		outcome, err := apply(ctx, tx, item)
		if err != nil {
			return fmt.Errorf("record %q: %w", item.Record.ExternalID, err)
		}
		switch outcome {
		case OutcomeCreated:
			created++
		case OutcomeUpdated:
			updated++
		case OutcomeSkipped, OutcomeUnchanged:
			skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	if onCommit != nil {
		onCommit()
	}
	result.Created += created
	result.Updated += updated
	result.Skipped += skipped
	return nil
}
