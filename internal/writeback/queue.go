// Package writeback holds write operations waiting to be executed in
// blocks. Queues are backed by memory, a Redis list or a Kafka topic.
package writeback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var (
	// ErrQueueClosed is returned when using a closed queue.
	ErrQueueClosed = errors.New("write-back queue is closed")

	// ErrQueueFull is returned when a bounded queue has no room left.
	ErrQueueFull = errors.New("write-back queue is full")

	// ErrListOperationsNotSupported is returned when the KV store given to
	// a Redis queue cannot push to and pop from lists.
	ErrListOperationsNotSupported = errors.New("KV store does not support list operations")
)

const (
	// DefaultDequeueSize is used when Dequeue is called with a
	// non-positive batch size.
	DefaultDequeueSize = 100

	// DefaultBufferSize bounds the memory queue.
	DefaultBufferSize = 10000

	// DefaultPrefix namespaces Redis queue keys.
	DefaultPrefix = "wbq"
)

// Queue types accepted by NewQueue.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeKafka  = "kafka"
)

// Config selects and configures a queue.
type Config struct {
	Type       string           `json:"type" yaml:"type"`
	BufferSize int              `json:"buffer_size" yaml:"buffer_size"`
	Prefix     string           `json:"prefix" yaml:"prefix"`
	Kafka      KafkaQueueConfig `json:"kafka" yaml:"kafka"`
}

// Validate checks the queue configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In(TypeMemory, TypeRedis, TypeKafka)),
		validation.Field(&c.BufferSize, validation.Min(0)),
		// Kafka settings are only checked for Kafka queues.
		validation.Field(&c.Kafka, validation.Skip.When(c.Type != TypeKafka)),
	)
}

// NewQueue creates the queue named by cfg.Type. Redis queues need a KV
// store implementing ListOperations.
func NewQueue(cfg Config, kvStore core.KVStore) (core.WriteBackQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid write-back queue configuration: %w", err)
	}

	switch cfg.Type {
	case TypeMemory:
		return NewMemoryQueue(cfg.BufferSize), nil
	case TypeRedis:
		ops, ok := kvStore.(ListOperations)
		if !ok {
			return nil, ErrListOperationsNotSupported
		}
		return NewRedisQueue(ops, cfg.Prefix), nil
	case TypeKafka:
		return NewKafkaQueue(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unsupported write-back queue type: %s", cfg.Type)
	}
}

// prepare validates an operation about to be queued and stamps it with
// an ID and submission time when missing.
func prepare(operation *core.WriteOperation) error {
	if err := operation.Validate(); err != nil {
		return err
	}
	if operation.ID == "" {
		operation.ID = uuid.NewString()
	}
	if operation.Timestamp.IsZero() {
		operation.Timestamp = time.Now()
	}
	return nil
}

func encode(operation *core.WriteOperation) ([]byte, error) {
	data, err := json.Marshal(operation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal write operation: %w", err)
	}
	return data, nil
}

// decode keeps numbers as json.Number so integer column values survive
// the round trip.
func decode(data []byte) (*core.WriteOperation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var op core.WriteOperation
	if err := dec.Decode(&op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal write operation: %w", err)
	}
	return &op, nil
}

func dequeueSize(batchSize int) int {
	if batchSize <= 0 {
		return DefaultDequeueSize
	}
	return batchSize
}
