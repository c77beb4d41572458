package core

import (
	"context"
	"time"
)

// KVStore is the key-value store backing the acknowledgement journal.
// Implementations exist for Redis and DynamoDB.
type KVStore interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound when the key
	// does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair. If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// BatchSet stores multiple key-value pairs with a shared TTL.
	BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Close releases the store's connections.
	Close() error
}
