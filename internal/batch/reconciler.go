package batch

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// reconciler matches the rows of an executed block to the operations
// that produced them. Positions are walked in submission order.
type reconciler struct {
	operations []*core.WriteOperation
	mappings   []core.ResultSetMapping
}

// consume drains cursor once. A missing row yields a *ConcurrencyError;
// any other failure is returned as an *UpdateError.
func (r *reconciler) consume(cursor core.ResultCursor) error {
	n := len(r.operations)
	current := 0

	for {
		for current < n && r.mappings[current] == core.NoResultSet {
			current++
		}

		propagation := current
		for propagation < n && !r.operations[propagation].RequiresResultPropagation() {
			propagation++
		}

		for ; current < propagation; current++ {
			if r.mappings[current] == core.NoResultSet {
				continue
			}
			ok, err := cursor.Advance()
			if err != nil {
				return r.updateError(current, err)
			}
			if !ok {
				return r.conflict(current)
			}
		}

		if propagation == n {
			return nil
		}

		pos := propagation
		row, ok, err := cursor.Read()
		if err != nil {
			return r.updateError(pos, err)
		}
		if !ok {
			return r.conflict(pos)
		}
		if err := r.propagate(pos, row); err != nil {
			return r.updateError(pos, err)
		}
		if err := cursor.NextResultSet(); err != nil {
			return r.updateError(pos, err)
		}
		current = propagation + 1
	}
}

// propagate writes the returned values of the read columns into the
// operation's record.
func (r *reconciler) propagate(pos int, row core.Row) error {
	op := r.operations[pos]
	columns := op.ReadColumns()
	if len(row) < len(columns) {
		return fmt.Errorf("%w: %d value(s) returned for %d read column(s)", ErrMalformedRow, len(row), len(columns))
	}
	if op.Record == nil {
		return nil
	}
	for i, c := range columns {
		op.Record.SetValue(c.ColumnName, row[i])
	}
	return nil
}

func (r *reconciler) conflict(pos int) error {
	return &ConcurrencyError{
		Position:  pos,
		Operation: r.operations[pos],
		Expected:  1,
		Actual:    0,
	}
}

func (r *reconciler) updateError(pos int, err error) error {
	var conflict *ConcurrencyError
	if errors.As(err, &conflict) {
		return err
	}
	return &UpdateError{
		Position:  pos,
		Operation: r.operations[pos],
		Err:       err,
	}
}
