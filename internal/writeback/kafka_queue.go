package writeback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

const (
	// DefaultKafkaGroupID is the consumer group used when none is set.
	DefaultKafkaGroupID = "blockwriter-writeback"

	// defaultPollTimeout bounds the wait for each message in Dequeue.
	defaultPollTimeout = 5 * time.Second
)

// KafkaQueueConfig holds configuration for Kafka queue.
type KafkaQueueConfig struct {
	Brokers         []string      `json:"brokers" yaml:"brokers"`
	Topic           string        `json:"topic" yaml:"topic"`
	GroupID         string        `json:"group_id" yaml:"group_id"`
	BatchSize       int           `json:"batch_size" yaml:"batch_size"`
	BatchTimeout    time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	RequiredAcks    int           `json:"required_acks" yaml:"required_acks"` // 0, 1, or -1 (all)
	MaxMessageBytes int           `json:"max_message_bytes" yaml:"max_message_bytes"`
	MinBytes        int           `json:"min_bytes" yaml:"min_bytes"`
	MaxBytes        int           `json:"max_bytes" yaml:"max_bytes"`
	MaxWait         time.Duration `json:"max_wait" yaml:"max_wait"`
}

// Validate checks the Kafka settings.
func (c KafkaQueueConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Brokers, validation.Required),
		validation.Field(&c.Topic, validation.Required),
		validation.Field(&c.RequiredAcks, validation.In(0, 1, -1)),
	)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue implements WriteBackQueue using Apache Kafka. Messages are
// keyed by table, so operations on one table keep their order.
type KafkaQueue struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	pollTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	size   int // approximate; Kafka has no queue length
}

// NewKafkaQueue creates a new Kafka-based write-back queue.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka queue configuration: %w", err)
	}
	if config.GroupID == "" {
		config.GroupID = DefaultKafkaGroupID
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		ReadTimeout:  config.ReadTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}
	if config.MaxMessageBytes > 0 {
		writer.BatchBytes = int64(config.MaxMessageBytes)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	log.Printf("[KAFKA] Queue on topic %s (brokers %v, group %s)", config.Topic, config.Brokers, config.GroupID)
	return newKafkaQueue(writer, reader, config.Topic), nil
}

func newKafkaQueue(writer messageWriter, reader messageReader, topic string) *KafkaQueue {
	return &KafkaQueue{
		writer:      writer,
		reader:      reader,
		topic:       topic,
		pollTimeout: defaultPollTimeout,
	}
}

func (q *KafkaQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue produces a write operation to the topic.
func (q *KafkaQueue) Enqueue(ctx context.Context, operation *core.WriteOperation) error {
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

	message := kafka.Message{
		Key:   []byte(operation.Table),
		Value: data,
		Time:  operation.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(operation.Operation)},
			{Key: "table", Value: []byte(operation.Table)},
			{Key: "id", Value: []byte(operation.ID)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		log.Errorf("[KAFKA] Failed to produce %s to %s: %v", operation.ID, q.topic, err)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	log.Debugf("[KAFKA] Produced %s %s on %s to %s (%d bytes, %v)",
		operation.ID, operation.Operation, operation.Table, q.topic, len(data), time.Since(start))
	return nil
}

// Dequeue consumes up to batchSize operations. It stops early once no
// message arrives within the poll timeout. Offsets are committed as
// messages are consumed; undecodable messages are committed and dropped.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.WriteOperation, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}

	batchSize = dequeueSize(batchSize)
	operations := make([]*core.WriteOperation, 0, batchSize)

	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, q.pollTimeout)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return operations, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return operations, fmt.Errorf("failed to read message from Kafka: %w", err)
		}

		op, decodeErr := decode(message.Value)
		if decodeErr != nil {
			log.Errorf("[KAFKA] Dropping message at partition %d offset %d: %v", message.Partition, message.Offset, decodeErr)
		} else {
			operations = append(operations, op)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			log.Warnf("[KAFKA] Failed to commit partition %d offset %d: %v", message.Partition, message.Offset, err)
		}
	}

	if len(operations) > 0 {
		q.mu.Lock()
		q.size -= len(operations)
		if q.size < 0 {
			q.size = 0
		}
		q.mu.Unlock()
		log.Debugf("[KAFKA] Consumed %d operation(s) from %s", len(operations), q.topic)
	}
	return operations, nil
}

// Size returns an approximate number of operations in the queue: those
// produced minus those consumed by this process.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the Kafka queue and releases resources.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	if err := q.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
	}
	if err := q.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close reader: %w", err))
	}
	return errors.Join(errs...)
}
