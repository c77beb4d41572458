package writeback

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// MemoryQueue implements WriteBackQueue using an in-memory channel-based queue.
// This is useful for testing or when persistence is not required.
type MemoryQueue struct {
	queue  chan *core.WriteOperation
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory write-back queue.
// bufferSize is the maximum number of operations that can be buffered.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryQueue{
		queue: make(chan *core.WriteOperation, bufferSize),
	}
}

// Enqueue adds a write operation to the queue. It never blocks: a full
// queue returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, operation *core.WriteOperation) error {
	if err := prepare(operation); err != nil {
		return err
	}

	// The read lock is held across the send so Close cannot close the
	// channel underneath it.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- operation:
		log.Debugf("[QUEUE] Enqueued %s %s on %s", operation.ID, operation.Operation, operation.Table)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves a batch of write operations from the queue.
// Returns operations in the order they were enqueued (FIFO).
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.WriteOperation, error) {
	batchSize = dequeueSize(batchSize)
	operations := make([]*core.WriteOperation, 0, batchSize)

	for i := 0; i < batchSize; i++ {
		select {
		case operation, ok := <-q.queue:
			if !ok {
				return operations, nil
			}
			operations = append(operations, operation)
		case <-ctx.Done():
			return operations, ctx.Err()
		default:
			return operations, nil
		}
	}
	return operations, nil
}

// Size returns the current number of operations in the queue.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close prevents further enqueuing. Operations already queued can still
// be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
