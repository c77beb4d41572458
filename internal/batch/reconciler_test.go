package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

func assembled(t *testing.T, ops ...*core.WriteOperation) *Batch {
	t.Helper()
	b := newBatch(t, &fakeGenerator{}, ops...)
	_, err := b.CommandText()
	require.NoError(t, err)
	return b
}

func TestConsumePropagatesValuesInSubmissionOrder(t *testing.T) {
	ops := []*core.WriteOperation{
		newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID")),
		newOp(core.OperationUpdate, "T", writeCol("B", 2), keyCol("ID", 5)),
		newOp(core.OperationCreate, "T", writeCol("A", 3), readCol("ID")),
	}
	b := assembled(t, ops...)

	cursor := &fakeCursor{rows: []core.Row{{int64(10)}, {int64(1)}, {int64(20)}}}
	require.NoError(t, b.Consume(cursor))

	require.Equal(t, int64(10), ops[0].Record.Values["ID"])
	require.Equal(t, int64(20), ops[2].Record.Values["ID"])
	require.Nil(t, ops[1].Record.Values)

	require.Equal(t, 2, cursor.reads)
	require.Equal(t, 1, cursor.advances)
	require.Equal(t, 2, cursor.nextResultSets)
	require.Equal(t, 3, cursor.pos)
}

// The insert's statement is emitted before the update's in the body, yet
// the update's confirmation row is consumed first.
func TestConsumeFollowsSubmissionOrderAcrossKinds(t *testing.T) {
	update := newOp(core.OperationUpdate, "T", writeCol("B", 2), keyCol("ID", 5))
	insert := newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID"))
	b := assembled(t, update, insert)
	require.Equal(t, []core.ResultSetMapping{core.LastInResultSet, core.LastInResultSet}, b.Mappings())

	cursor := &fakeCursor{rows: []core.Row{{int64(1)}, {int64(42)}}}
	require.NoError(t, b.Consume(cursor))

	require.Equal(t, int64(42), insert.Record.Values["ID"])
	require.Equal(t, 1, cursor.advances)
	require.Equal(t, 1, cursor.reads)
}

func TestConsumeSkipsPositionsWithoutResults(t *testing.T) {
	b := assembled(t,
		newOp(core.OperationCreate, "T", writeCol("A", 1)),
		newOp(core.OperationCreate, "T", writeCol("A", 2)),
		newOp(core.OperationUpdate, "T", writeCol("B", 3), keyCol("ID", 1)),
		otherOp("X"),
	)

	cursor := &fakeCursor{rows: []core.Row{{int64(1)}}}
	require.NoError(t, b.Consume(cursor))
	require.Equal(t, 1, cursor.advances)
	require.Equal(t, 0, cursor.reads)
}

func TestConsumeMissingConfirmationIsConflict(t *testing.T) {
	ops := []*core.WriteOperation{
		newOp(core.OperationUpdate, "T", writeCol("A", 1), keyCol("ID", 1)),
		newOp(core.OperationUpdate, "T", writeCol("A", 2), keyCol("ID", 2)),
		newOp(core.OperationUpdate, "T", writeCol("A", 3), keyCol("ID", 3)),
	}
	b := assembled(t, ops...)

	cursor := &fakeCursor{rows: []core.Row{{int64(1)}}}
	err := b.Consume(cursor)

	var conflict *ConcurrencyError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, 1, conflict.Position)
	require.Same(t, ops[1], conflict.Operation)
	require.Same(t, ops[1].Record, conflict.Record())
	require.Equal(t, int64(1), conflict.Expected)
	require.Equal(t, int64(0), conflict.Actual)

	// Nothing is consumed after the missing row.
	require.Equal(t, 2, cursor.advances)
	require.Equal(t, 0, cursor.reads)
}

func TestConsumeMissingGeneratedValueIsConflict(t *testing.T) {
	op := newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID"))
	b := assembled(t, op)
	require.Equal(t, []core.ResultSetMapping{core.LastInResultSet}, b.Mappings())

	err := b.Consume(&fakeCursor{})

	var conflict *ConcurrencyError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, 0, conflict.Position)
	require.Same(t, op.Record, conflict.Record())
	require.Equal(t, int64(1), conflict.Expected)
	require.Equal(t, int64(0), conflict.Actual)

	var updateErr *UpdateError
	require.False(t, errors.As(err, &updateErr))
	require.Nil(t, op.Record.Values)
}

func TestConsumeWrapsCursorErrors(t *testing.T) {
	ops := []*core.WriteOperation{
		newOp(core.OperationUpdate, "T", writeCol("A", 1), keyCol("ID", 1)),
		newOp(core.OperationUpdate, "T", writeCol("A", 2), keyCol("ID", 2)),
	}
	b := assembled(t, ops...)

	cursor := &fakeCursor{rows: []core.Row{{int64(1)}, {int64(1)}}, err: errBoom, failAt: 1}
	err := b.Consume(cursor)

	require.ErrorIs(t, err, errBoom)
	var updateErr *UpdateError
	require.True(t, errors.As(err, &updateErr))
	require.Equal(t, 1, updateErr.Position)
	require.Same(t, ops[1].Record, updateErr.Record())
}

func TestConsumeWrapsReadErrors(t *testing.T) {
	op := newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID"))
	b := assembled(t, op)

	err := b.Consume(&fakeCursor{rows: []core.Row{{int64(1)}}, err: errBoom})

	var updateErr *UpdateError
	require.True(t, errors.As(err, &updateErr))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 0, updateErr.Position)
}

func TestConsumeRejectsMalformedRow(t *testing.T) {
	b := assembled(t, newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID")))

	err := b.Consume(&fakeCursor{rows: []core.Row{{}}})

	var updateErr *UpdateError
	require.True(t, errors.As(err, &updateErr))
	require.ErrorIs(t, err, ErrMalformedRow)
}

func TestConsumeRequiresAssembly(t *testing.T) {
	b := newBatch(t, &fakeGenerator{}, newOp(core.OperationCreate, "T", writeCol("A", 1)))
	require.ErrorIs(t, b.Consume(&fakeCursor{}), ErrNotAssembled)
}

func TestConsumeAsync(t *testing.T) {
	op := newOp(core.OperationCreate, "T", writeCol("A", 1), readCol("ID"))
	b := assembled(t, op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The context is not consulted while consuming.
	err := <-b.ConsumeAsync(ctx, &fakeCursor{rows: []core.Row{{int64(42)}}})
	require.NoError(t, err)
	require.Equal(t, int64(42), op.Record.Values["ID"])

	err = <-b.ConsumeAsync(context.Background(), &fakeCursor{})
	var conflict *ConcurrencyError
	require.True(t, errors.As(err, &conflict))
}

func TestErrorsWithoutOperation(t *testing.T) {
	conflict := &ConcurrencyError{Expected: 1}
	require.Contains(t, conflict.Error(), "<nil operation> of <nil record>")
	require.Nil(t, conflict.Record())

	updateErr := &UpdateError{Err: errBoom}
	require.Contains(t, updateErr.Error(), "<nil operation> of <nil record>")
	require.ErrorIs(t, updateErr, errBoom)
}
