// Package batch compiles ordered write operations into a single Firebird
// EXECUTE BLOCK and reconciles the block's response cursor back to the
// operations.
//
// A Batch is filled with TryAdd until admission fails, turned into text
// with CommandText and, once the block has run, fed its cursor through
// Consume. A Batch is used by one goroutine at a time and is discarded
// after reconciliation.
package batch

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

type options struct {
	maxBatchSize *int
}

// Option configures a Batch.
type Option func(*options)

// WithMaxBatchSize caps the number of operations per batch. Values above
// MaxRowCount are clamped; non-positive values make New fail.
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		o.maxBatchSize = &n
	}
}

// Batch is an ordered set of write operations compiled into one block.
type Batch struct {
	generator  core.StatementGenerator
	admission  *admissionController
	operations []*core.WriteOperation

	// assembled is set by CommandText and read by Consume.
	assembled *assembly
}

// New creates an empty batch rendered through generator.
func New(generator core.StatementGenerator, opts ...Option) (*Batch, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	maxRows := MaxRowCount
	if o.maxBatchSize != nil {
		if *o.maxBatchSize <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxBatchSize, *o.maxBatchSize)
		}
		if *o.maxBatchSize < maxRows {
			maxRows = *o.maxBatchSize
		}
	}

	return &Batch{
		generator: generator,
		admission: newAdmissionController(maxRows),
	}, nil
}

// TryAdd appends op if it fits. Once TryAdd returns false the batch is
// complete and must not be grown further.
func (b *Batch) TryAdd(op *core.WriteOperation) bool {
	if !b.admission.canAdmit(len(b.operations), op) {
		return false
	}
	b.operations = append(b.operations, op)
	b.assembled = nil
	return true
}

// Len returns the number of admitted operations.
func (b *Batch) Len() int {
	return len(b.operations)
}

// MaxRowCount returns the effective row limit of the batch.
func (b *Batch) MaxRowCount() int {
	return b.admission.maxRowCount
}

// Operations returns the admitted operations in submission order.
func (b *Batch) Operations() []*core.WriteOperation {
	return b.operations
}

// ParameterCount returns the running parameter count, including the slot
// reserved for the block's output parameter.
func (b *Batch) ParameterCount() int {
	return b.admission.parameterCount
}

// CommandText assembles the block. It may be called any number of
// times; each call yields the same text and arguments.
func (b *Batch) CommandText() (*Block, error) {
	a, err := assemble(b.generator, b.operations)
	if err != nil {
		return nil, err
	}
	b.assembled = a

	log.Debugf("[BATCH] Assembled block for %d operation(s), %d argument(s)", len(b.operations), len(a.block.Args))
	log.Tracef("[BATCH] Block text:\n%s", a.block.Text)
	return a.block, nil
}

// Mappings returns the result set mapping of each position as recorded
// by the last CommandText call, or nil before the first call.
func (b *Batch) Mappings() []core.ResultSetMapping {
	if b.assembled == nil {
		return nil
	}
	mappings := make([]core.ResultSetMapping, len(b.assembled.mappings))
	copy(mappings, b.assembled.mappings)
	return mappings
}

// Consume reconciles the cursor of the executed block with the batch.
// Returned values are written into the operations' records. A missing
// row is reported as *ConcurrencyError, anything else as *UpdateError.
func (b *Batch) Consume(cursor core.ResultCursor) error {
	if b.assembled == nil {
		return ErrNotAssembled
	}
	r := &reconciler{
		operations: b.operations,
		mappings:   b.assembled.mappings,
	}
	if err := r.consume(cursor); err != nil {
		log.Debugf("[BATCH] Reconciliation failed: %v", err)
		return err
	}
	return nil
}

// ConsumeAsync runs Consume in a new goroutine and delivers its result
// on the returned channel. The context is not checked while rows are
// being consumed.
func (b *Batch) ConsumeAsync(_ context.Context, cursor core.ResultCursor) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- b.Consume(cursor)
	}()
	return done
}
