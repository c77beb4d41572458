// Package blockwriter executes write operations against Firebird in
// EXECUTE BLOCK batches, directly through a Writer or from a write-back
// queue through a Drainer.
package blockwriter

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/batch"
	"github.com/rzpsarthak13/blockwriter/internal/core"
	"github.com/rzpsarthak13/blockwriter/internal/database"
)

// Acknowledger records the operations of committed blocks.
// journal.Journal implements it.
type Acknowledger interface {
	Acknowledge(ctx context.Context, ops []*core.WriteOperation) (string, error)
}

// Result describes how far Execute got. Operations are listed in
// submission order.
type Result struct {
	// Blocks is the number of committed blocks.
	Blocks int

	// Committed holds the operations of committed blocks.
	Committed []*core.WriteOperation

	// BatchIDs holds the journal batch ID of each committed block, when
	// journaling is enabled.
	BatchIDs []string

	// Failed holds the operations of the block that failed and was
	// rolled back.
	Failed []*core.WriteOperation

	// Pending holds operations that were never sent.
	Pending []*core.WriteOperation
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMaxBatchSize caps the operations per block.
func WithMaxBatchSize(n int) WriterOption {
	return func(w *Writer) {
		w.batchOptions = append(w.batchOptions, batch.WithMaxBatchSize(n))
	}
}

// WithMultipleResultSets makes the cursor forward NextResultSet to the
// driver.
func WithMultipleResultSets() WriterOption {
	return func(w *Writer) {
		w.cursorOptions = append(w.cursorOptions, database.WithMultipleResultSets())
	}
}

// WithJournal acknowledges every committed block.
func WithJournal(j Acknowledger) WriterOption {
	return func(w *Writer) {
		w.journal = j
	}
}

// Writer splits operations into blocks and runs each block in its own
// transaction.
type Writer struct {
	db            core.Database
	generator     core.StatementGenerator
	batchOptions  []batch.Option
	cursorOptions []database.CursorOption
	journal       Acknowledger
}

// NewWriter creates a writer. It fails if the batch options are invalid.
func NewWriter(db core.Database, generator core.StatementGenerator, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		db:        db,
		generator: generator,
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.newBatch(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) newBatch() (*batch.Batch, error) {
	return batch.New(w.generator, w.batchOptions...)
}

// Plan splits ops into batches in submission order. A batch is closed as
// soon as the next operation is not admitted.
func (w *Writer) Plan(ops []*core.WriteOperation) ([]*batch.Batch, error) {
	var batches []*batch.Batch
	current, err := w.newBatch()
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, &RejectedError{Operation: op, Err: err}
		}
		if current.TryAdd(op) {
			continue
		}
		if current.Len() > 0 {
			batches = append(batches, current)
			if current, err = w.newBatch(); err != nil {
				return nil, err
			}
			if current.TryAdd(op) {
				continue
			}
		}
		return nil, &RejectedError{
			Operation: op,
			Err:       fmt.Errorf("%w: %d parameter(s)", ErrOperationTooLarge, op.ParameterCount()),
		}
	}
	if current.Len() > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// Render returns the blocks Execute would send, without sending them.
func (w *Writer) Render(ops []*core.WriteOperation) ([]*batch.Block, error) {
	batches, err := w.Plan(ops)
	if err != nil {
		return nil, err
	}
	blocks := make([]*batch.Block, 0, len(batches))
	for _, b := range batches {
		block, err := b.CommandText()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Execute runs ops block by block and stops at the first failing block.
// Blocks committed before the failure stay committed; the Result tells
// which operations were committed, failed or never sent.
func (w *Writer) Execute(ctx context.Context, ops []*core.WriteOperation) (*Result, error) {
	result := &Result{}

	batches, err := w.Plan(ops)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			for _, op := range ops {
				if op != rejected.Operation {
					result.Pending = append(result.Pending, op)
				}
			}
			result.Failed = []*core.WriteOperation{rejected.Operation}
		}
		return result, err
	}

	for i, b := range batches {
		batchID, err := w.executeBatch(ctx, b)
		if err != nil {
			result.Failed = b.Operations()
			for _, rest := range batches[i+1:] {
				result.Pending = append(result.Pending, rest.Operations()...)
			}
			return result, fmt.Errorf("block %d of %d: %w", i+1, len(batches), err)
		}
		result.Blocks++
		result.Committed = append(result.Committed, b.Operations()...)
		if batchID != "" {
			result.BatchIDs = append(result.BatchIDs, batchID)
		}
	}
	return result, nil
}

// ExecuteResult is delivered by ExecuteAsync.
type ExecuteResult struct {
	Result *Result
	Err    error
}

// ExecuteAsync runs Execute in a new goroutine.
func (w *Writer) ExecuteAsync(ctx context.Context, ops []*core.WriteOperation) <-chan ExecuteResult {
	done := make(chan ExecuteResult, 1)
	go func() {
		result, err := w.Execute(ctx, ops)
		done <- ExecuteResult{Result: result, Err: err}
	}()
	return done
}

// executeBatch runs one block in a transaction and reconciles its
// results. It returns the journal batch ID, if any.
func (w *Writer) executeBatch(ctx context.Context, b *batch.Batch) (string, error) {
	block, err := b.CommandText()
	if err != nil {
		return "", err
	}

	start := time.Now()
	tx, err := w.db.BeginTx(ctx)
	if err != nil {
		return "", err
	}

	if err := w.run(ctx, tx, b, block); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("[WRITER] Rollback failed: %v", rbErr)
		}
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit block: %w", err)
	}
	log.Debugf("[WRITER] Committed block of %d operation(s) in %v", b.Len(), time.Since(start))

	if w.journal == nil {
		return "", nil
	}
	// The block is committed; a journal failure must not cause it to be
	// sent again.
	batchID, err := w.journal.Acknowledge(ctx, b.Operations())
	if err != nil {
		log.Errorf("[WRITER] Failed to journal committed block: %v", err)
		return "", nil
	}
	return batchID, nil
}

func (w *Writer) run(ctx context.Context, tx core.Transaction, b *batch.Batch, block *batch.Block) error {
	rows, err := tx.Query(ctx, block.Text, block.Args...)
	if err != nil {
		return fmt.Errorf("failed to execute block: %w", err)
	}

	cursor := database.NewSQLCursor(rows, w.cursorOptions...)
	err = b.Consume(cursor)
	if err == nil {
		err = cursor.Drain()
	}
	if closeErr := rows.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close cursor: %w", closeErr)
	}
	return err
}
