package blockwriter

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/blockwriter/internal/batch"
	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var (
	// ErrOperationTooLarge is returned for an operation whose parameters
	// do not fit even an empty block.
	ErrOperationTooLarge = errors.New("operation does not fit in an empty block")

	// ErrJournalDisabled is returned by journal lookups when no journal
	// is configured.
	ErrJournalDisabled = errors.New("journal is disabled")

	// ErrInvalidOperation is returned for malformed write operations.
	ErrInvalidOperation = core.ErrInvalidOperation
)

// ConcurrencyError is returned when a row a block was expected to
// affect was not affected.
type ConcurrencyError = batch.ConcurrencyError

// UpdateError wraps any other failure while reading a block's results.
type UpdateError = batch.UpdateError

// RejectedError reports an operation refused before any block was sent.
type RejectedError struct {
	Operation *core.WriteOperation
	Err       error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("operation %s on %s rejected: %v", e.Operation.Operation, e.Operation.Table, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}
