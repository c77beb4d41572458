package writeback

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// ListOperations are the Redis list commands the queue is built on.
// kvstore.RedisKVStore implements them.
type ListOperations interface {
	// ListPush appends values to the tail of a list (RPUSH).
	ListPush(ctx context.Context, key string, values ...[]byte) error

	// ListPopN removes and returns up to n elements from the head of a
	// list (LPOP with count). An empty list yields no elements.
	ListPopN(ctx context.Context, key string, n int) ([][]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

// RedisQueue implements WriteBackQueue using a Redis list. Operations are
// serialized as JSON and pushed to {prefix}:queue, so every process
// sharing the prefix drains the same FIFO.
type RedisQueue struct {
	ops    ListOperations
	prefix string
	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue creates a new Redis-based write-back queue.
// prefix is used to namespace queue keys in Redis (e.g., "wbq").
func NewRedisQueue(ops ListOperations, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisQueue{
		ops:    ops,
		prefix: prefix,
	}
}

// Key returns the Redis key of the queue list.
func (q *RedisQueue) Key() string {
	return fmt.Sprintf("%s:queue", q.prefix)
}

func (q *RedisQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue adds a write operation to the tail of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, operation *core.WriteOperation) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := prepare(operation); err != nil {
		return err
	}

	data, err := encode(operation)
	if err != nil {
		return err
	}
	if err := q.ops.ListPush(ctx, q.Key(), data); err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	log.Debugf("[QUEUE] Enqueued %s %s on %s to %s", operation.ID, operation.Operation, operation.Table, q.Key())
	return nil
}

// Dequeue pops up to batchSize operations from the head of the list.
// Entries that cannot be decoded are logged and dropped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.WriteOperation, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	items, err := q.ops.ListPopN(ctx, q.Key(), dequeueSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue operations: %w", err)
	}

	operations := make([]*core.WriteOperation, 0, len(items))
	for _, data := range items {
		op, err := decode(data)
		if err != nil {
			log.Errorf("[QUEUE] Dropping undecodable entry from %s: %v", q.Key(), err)
			continue
		}
		operations = append(operations, op)
	}
	return operations, nil
}

// Size returns the length of the list, or 0 if Redis cannot be reached.
func (q *RedisQueue) Size() int {
	n, err := q.ops.ListLength(context.Background(), q.Key())
	if err != nil {
		log.Warnf("[QUEUE] Failed to read length of %s: %v", q.Key(), err)
		return 0
	}
	return int(n)
}

// Close marks the queue closed. The underlying store is owned by the
// caller and stays open.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
