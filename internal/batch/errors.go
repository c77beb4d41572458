package batch

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var (
	// ErrInvalidMaxBatchSize is returned by New when a non-positive
	// maximum batch size is configured.
	ErrInvalidMaxBatchSize = errors.New("max batch size must be positive")

	// ErrNotAssembled is returned when results are consumed before the
	// block text has been generated.
	ErrNotAssembled = errors.New("batch has not been assembled")

	// ErrMalformedRow is returned when a result row does not carry a
	// value for every read column of its operation.
	ErrMalformedRow = errors.New("malformed result row")
)

// ConcurrencyError is returned when a row the block was expected to
// affect produced no result row.
type ConcurrencyError struct {
	// Position is the operation's position in the batch.
	Position int

	// Operation is the operation whose row is missing.
	Operation *core.WriteOperation

	// Expected and Actual are the affected row counts.
	Expected int64
	Actual   int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: %s of %s (position %d) expected to affect %d row(s) but actually affected %d",
		operationType(e.Operation), e.Record(), e.Position, e.Expected, e.Actual)
}

// Record returns the record of the conflicting operation.
func (e *ConcurrencyError) Record() *core.Record {
	if e.Operation == nil {
		return nil
	}
	return e.Operation.Record
}

// UpdateError wraps any failure raised while consuming the results of a
// block.
type UpdateError struct {
	// Position is the position of the operation being processed.
	Position int

	// Operation is the operation being processed when the failure
	// occurred.
	Operation *core.WriteOperation

	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("an error occurred while updating the store: %s of %s (position %d): %v",
		operationType(e.Operation), e.Record(), e.Position, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// Record returns the record of the operation being processed.
func (e *UpdateError) Record() *core.Record {
	if e.Operation == nil {
		return nil
	}
	return e.Operation.Record
}

func operationType(op *core.WriteOperation) core.OperationType {
	if op == nil {
		return "<nil operation>"
	}
	return op.Operation
}
