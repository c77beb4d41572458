package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// RedisKVStore implements the core.KVStore interface using Redis. It
// also offers the list operations used by the Redis write-back queue.
type RedisKVStore struct {
	client *redis.Client
	closed bool
}

// NewRedisKVStore connects to the first endpoint and pings it.
func NewRedisKVStore(config Config) (*RedisKVStore, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Endpoints[0],
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Connected to %s (db %d)", config.Endpoints[0], config.DB)
	return NewRedisKVStoreFromClient(client), nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

// Get retrieves a value by key from the store.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		log.Debugf("[REDIS] Key not found: %s", key)
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	if err != nil {
		log.Errorf("[REDIS] Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	log.Debugf("[REDIS] GET %s (%d bytes)", key, len(val))
	return val, nil
}

// Set stores a key-value pair. A zero ttl stores the key without
// expiration.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Errorf("[REDIS] Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	log.Debugf("[REDIS] SET %s (%d bytes, ttl %v)", key, len(value), ttl)
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed {
		return ErrStoreClosed
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed {
		return false, ErrStoreClosed
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// BatchSet stores all items in one pipeline with a shared TTL.
func (r *RedisKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if r.closed {
		return ErrStoreClosed
	}
	if len(items) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch set keys: %w", err)
	}
	log.Debugf("[REDIS] Batch SET of %d key(s)", len(items))
	return nil
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// ListPush appends values to the end of a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, values ...[]byte) error {
	if r.closed {
		return ErrStoreClosed
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return r.client.RPush(ctx, key, args...).Err()
}

// ListPopN removes and returns up to n elements from the head of a list
// (LPOP key count). An empty list yields no elements and no error.
func (r *RedisKVStore) ListPopN(ctx context.Context, key string, n int) ([][]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed
	}
	vals, err := r.client.LPopCount(ctx, key, n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result := make([][]byte, len(vals))
	for i, v := range vals {
		result[i] = []byte(v)
	}
	return result, nil
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed {
		return 0, ErrStoreClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// RedisFactory creates Redis KV stores.
type RedisFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisFactory) Validate(config Config) error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Type, validation.Required, validation.In("redis")),
		validation.Field(&config.Endpoints, validation.Required),
		validation.Field(&config.DB, validation.Min(0), validation.Max(15)),
		validation.Field(&config.PoolSize, validation.Required, validation.Min(1)),
		validation.Field(&config.MinIdleConns, validation.Min(0)),
		validation.Field(&config.MaxRetries, validation.Min(0)),
		validation.Field(&config.DialTimeout, validation.Required),
		validation.Field(&config.ReadTimeout, validation.Required),
		validation.Field(&config.WriteTimeout, validation.Required),
	)
}

// Create creates a new Redis KV store.
func (f *RedisFactory) Create(config Config) (core.KVStore, error) {
	store, err := NewRedisKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&RedisFactory{})
}
