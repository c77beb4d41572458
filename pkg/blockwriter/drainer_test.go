package blockwriter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/blockwriter/internal/core"
	"github.com/rzpsarthak13/blockwriter/internal/writeback"
)

type scriptedExecutor struct {
	mu    sync.Mutex
	calls [][]*core.WriteOperation
	fn    func(ops []*core.WriteOperation) (*Result, error)
}

func (e *scriptedExecutor) Execute(_ context.Context, ops []*core.WriteOperation) (*Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, ops)
	e.mu.Unlock()
	if e.fn == nil {
		return &Result{Blocks: 1, Committed: ops}, nil
	}
	return e.fn(ops)
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func fastConfig() DrainerConfig {
	return DrainerConfig{DrainRate: 1000, DequeueSize: 10, PollInterval: 5 * time.Millisecond, MaxRetries: 2}
}

func enqueueAll(t *testing.T, q core.WriteBackQueue, ops ...*core.WriteOperation) {
	t.Helper()
	for _, op := range ops {
		require.NoError(t, q.Enqueue(context.Background(), op))
	}
}

func drainAll(t *testing.T, q core.WriteBackQueue) []*core.WriteOperation {
	t.Helper()
	ops, err := q.Dequeue(context.Background(), 100)
	require.NoError(t, err)
	return ops
}

func TestDrainOnceExecutesDequeuedOperations(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	exec := &scriptedExecutor{}
	d := NewDrainer(q, exec, fastConfig())

	a, b := insertRow("a"), insertRow("b")
	enqueueAll(t, q, a, b)

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, [][]*core.WriteOperation{{a, b}}, exec.calls)
	require.Zero(t, q.Size())

	n, err = d.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, exec.callCount())
}

func TestConflictingOperationIsDropped(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	a, b, c := updateRow(1, "a"), updateRow(2, "b"), updateRow(3, "c")
	exec := &scriptedExecutor{fn: func(ops []*core.WriteOperation) (*Result, error) {
		return &Result{Failed: ops[:2], Pending: ops[2:]}, &ConcurrencyError{Position: 0, Operation: ops[0], Expected: 1}
	}}
	d := NewDrainer(q, exec, fastConfig())
	enqueueAll(t, q, a, b, c)

	_, err := d.DrainOnce(context.Background())
	require.Error(t, err)

	requeued := drainAll(t, q)
	require.Equal(t, []*core.WriteOperation{b, c}, requeued)
	require.Zero(t, b.RetryCount)
	require.Zero(t, c.RetryCount)
}

func TestUpdateErrorRetriesTheFailingOperation(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	a, b := updateRow(1, "a"), updateRow(2, "b")
	exec := &scriptedExecutor{fn: func(ops []*core.WriteOperation) (*Result, error) {
		return &Result{Failed: ops}, &UpdateError{Position: 1, Operation: ops[1], Err: errors.New("lock conflict")}
	}}
	d := NewDrainer(q, exec, fastConfig())
	enqueueAll(t, q, a, b)

	_, err := d.DrainOnce(context.Background())
	require.Error(t, err)

	requeued := drainAll(t, q)
	require.Equal(t, []*core.WriteOperation{a, b}, requeued)
	require.Zero(t, a.RetryCount)
	require.Equal(t, 1, b.RetryCount)
}

func TestOperationsAreDroppedPastMaxRetries(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	exec := &scriptedExecutor{fn: func(ops []*core.WriteOperation) (*Result, error) {
		return &Result{Failed: ops}, errors.New("connection refused")
	}}
	d := NewDrainer(q, exec, fastConfig())

	op := insertRow("a")
	enqueueAll(t, q, op)
	for i := 0; i < 3; i++ {
		_, err := d.DrainOnce(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, 3, op.RetryCount)
	require.Zero(t, q.Size())
	require.Equal(t, 3, exec.callCount())
}

func TestRejectedOperationIsDropped(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	a, b := insertRow("a"), insertRow("b")
	exec := &scriptedExecutor{fn: func(ops []*core.WriteOperation) (*Result, error) {
		return &Result{Failed: ops[:1], Pending: ops[1:]}, &RejectedError{Operation: ops[0], Err: ErrOperationTooLarge}
	}}
	d := NewDrainer(q, exec, fastConfig())
	enqueueAll(t, q, a, b)

	_, err := d.DrainOnce(context.Background())
	require.ErrorIs(t, err, ErrOperationTooLarge)
	require.Equal(t, []*core.WriteOperation{b}, drainAll(t, q))
}

func TestDrainerStartStop(t *testing.T) {
	q := writeback.NewMemoryQueue(10)
	exec := &scriptedExecutor{}
	d := NewDrainer(q, exec, fastConfig())

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))
	require.True(t, d.IsRunning())

	enqueueAll(t, q, insertRow("a"), insertRow("b"))
	require.Eventually(t, func() bool { return q.Size() == 0 && exec.callCount() > 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
	require.False(t, d.IsRunning())
}

func TestDrainerStopsOnContextCancel(t *testing.T) {
	d := NewDrainer(writeback.NewMemoryQueue(1), &scriptedExecutor{}, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()
	require.NoError(t, d.Stop())
}

func TestNewDrainerAppliesDefaults(t *testing.T) {
	d := NewDrainer(writeback.NewMemoryQueue(1), &scriptedExecutor{}, DrainerConfig{MaxRetries: -1})
	cfg := d.Config()
	require.Equal(t, DefaultDrainerConfig().DrainRate, cfg.DrainRate)
	require.Equal(t, DefaultDrainerConfig().DequeueSize, cfg.DequeueSize)
	require.Equal(t, DefaultDrainerConfig().PollInterval, cfg.PollInterval)
	require.Zero(t, cfg.MaxRetries)
}
