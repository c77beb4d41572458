// Package config loads blockwriter configuration from YAML, JSON and
// BLOCKWRITER_* environment variables on top of DefaultConfig.
package config

import (
	"time"

	"github.com/rzpsarthak13/blockwriter/internal/database"
	"github.com/rzpsarthak13/blockwriter/internal/kvstore"
	"github.com/rzpsarthak13/blockwriter/internal/writeback"
)

// KVStoreNone disables the KV store, and with it the journal and the
// Redis queue.
const KVStoreNone = "none"

// Config is the full blockwriter configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Batch     BatchConfig     `yaml:"batch" json:"batch"`
	KVStore   KVStoreConfig   `yaml:"kvstore" json:"kvstore"`
	WriteBack WriteBackConfig `yaml:"writeback" json:"writeback"`
	Journal   JournalConfig   `yaml:"journal" json:"journal"`
}

// DatabaseConfig contains the Firebird connection settings.
type DatabaseConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password" json:"password"`
	Role              string        `yaml:"role,omitempty" json:"role,omitempty"`
	Charset           string        `yaml:"charset,omitempty" json:"charset,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// BatchConfig controls how operations are packed into execute blocks.
type BatchConfig struct {
	// MaxBatchSize caps the operations per block. Nil selects the
	// maximum of 256; values above it are clamped.
	MaxBatchSize *int `yaml:"max_batch_size,omitempty" json:"max_batch_size,omitempty"`

	// MultipleResultSets tells the cursor adapter that the driver exposes
	// more than one result set per command.
	MultipleResultSets bool `yaml:"multiple_result_sets" json:"multiple_result_sets"`
}

// KVStoreConfig contains configuration for the key-value store.
type KVStoreConfig struct {
	Type         string         `yaml:"type" json:"type"`
	Redis        RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB     DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MaxRetries   int            `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration  `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration  `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration  `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// WriteBackConfig contains the write-back queue and drainer settings.
type WriteBackConfig struct {
	QueueType       string        `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize int           `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	QueuePrefix     string        `yaml:"queue_prefix,omitempty" json:"queue_prefix,omitempty"`
	DequeueSize     int           `yaml:"dequeue_size" json:"dequeue_size"`
	DrainRate       int           `yaml:"drain_rate" json:"drain_rate"` // blocks per second
	DrainInterval   time.Duration `yaml:"drain_interval" json:"drain_interval"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	Kafka           KafkaConfig   `yaml:"kafka" json:"kafka"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// JournalConfig controls acknowledgement journaling. It needs a KV store.
type JournalConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Prefix  string        `yaml:"prefix" json:"prefix"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              3050,
			Charset:           "UTF8",
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		KVStore: KVStoreConfig{
			Type: KVStoreNone,
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		WriteBack: WriteBackConfig{
			QueueType:       writeback.TypeMemory,
			QueueBufferSize: writeback.DefaultBufferSize,
			QueuePrefix:     writeback.DefaultPrefix,
			DequeueSize:     1000,
			DrainRate:       10,
			DrainInterval:   time.Second,
			MaxRetries:      5,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "blockwriter-writeback",
				GroupID:         writeback.DefaultKafkaGroupID,
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
		Journal: JournalConfig{
			Prefix: "blockwriter",
			TTL:    7 * 24 * time.Hour,
		},
	}
}

// DatabaseSettings converts the section for database.NewFirebirdDatabase.
func (c *Config) DatabaseSettings() database.Config {
	d := c.Database
	return database.Config{
		Host:              d.Host,
		Port:              d.Port,
		Database:          d.Database,
		Username:          d.Username,
		Password:          d.Password,
		Role:              d.Role,
		Charset:           d.Charset,
		MaxOpenConns:      d.MaxOpenConns,
		MaxIdleConns:      d.MaxIdleConns,
		ConnMaxLifetime:   d.ConnMaxLifetime,
		ConnMaxIdleTime:   d.ConnMaxIdleTime,
		ConnectionTimeout: d.ConnectionTimeout,
	}
}

// KVStoreSettings converts the section for kvstore.Create.
func (c *Config) KVStoreSettings() kvstore.Config {
	k := c.KVStore
	return kvstore.Config{
		Type:            k.Type,
		Endpoints:       k.Redis.Endpoints,
		Password:        k.Redis.Password,
		DB:              k.Redis.DB,
		MaxRetries:      k.MaxRetries,
		PoolSize:        k.Redis.PoolSize,
		MinIdleConns:    k.Redis.MinIdleConns,
		DialTimeout:     k.DialTimeout,
		ReadTimeout:     k.ReadTimeout,
		WriteTimeout:    k.WriteTimeout,
		Region:          k.DynamoDB.Region,
		TableName:       k.DynamoDB.TableName,
		Endpoint:        k.DynamoDB.Endpoint,
		AccessKeyID:     k.DynamoDB.AccessKeyID,
		SecretAccessKey: k.DynamoDB.SecretAccessKey,
	}
}

// QueueSettings converts the section for writeback.NewQueue.
func (c *Config) QueueSettings() writeback.Config {
	w := c.WriteBack
	k := w.Kafka
	return writeback.Config{
		Type:       w.QueueType,
		BufferSize: w.QueueBufferSize,
		Prefix:     w.QueuePrefix,
		Kafka: writeback.KafkaQueueConfig{
			Brokers:         k.Brokers,
			Topic:           k.Topic,
			GroupID:         k.GroupID,
			BatchSize:       k.BatchSize,
			BatchTimeout:    k.BatchTimeout,
			WriteTimeout:    k.WriteTimeout,
			ReadTimeout:     k.ReadTimeout,
			RequiredAcks:    k.RequiredAcks,
			MaxMessageBytes: k.MaxMessageBytes,
			MinBytes:        k.MinBytes,
			MaxBytes:        k.MaxBytes,
			MaxWait:         k.MaxWait,
		},
	}
}
