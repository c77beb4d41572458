package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/blockwriter/internal/kvstore"
	"github.com/rzpsarthak13/blockwriter/internal/writeback"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "BLOCKWRITER_"

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *Config
	getenv func(string) string
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: DefaultConfig(),
		getenv: os.Getenv,
	}
}

// Config returns the current configuration.
func (cm *ConfigManager) Config() *Config {
	return cm.config
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
// Durations are written as strings such as "5s".
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
// Durations are written in nanoseconds.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv overrides the current configuration with environment
// variables named BLOCKWRITER_<SECTION>_<KEY>, for example:
//   - BLOCKWRITER_DATABASE_HOST=localhost
//   - BLOCKWRITER_BATCH_MAX_BATCH_SIZE=128
//   - BLOCKWRITER_KVSTORE_TYPE=redis
//   - BLOCKWRITER_KVSTORE_ENDPOINTS=localhost:6379,localhost:6380
//   - BLOCKWRITER_WRITEBACK_QUEUE_TYPE=kafka
//
// Malformed numbers and durations are reported as errors.
func (cm *ConfigManager) LoadFromEnv() error {
	config := *cm.config
	env := envReader{getenv: cm.getenv}

	// Database
	env.str("DATABASE_HOST", &config.Database.Host)
	env.int("DATABASE_PORT", &config.Database.Port)
	env.str("DATABASE_DATABASE", &config.Database.Database)
	env.str("DATABASE_USERNAME", &config.Database.Username)
	env.str("DATABASE_PASSWORD", &config.Database.Password)
	env.str("DATABASE_ROLE", &config.Database.Role)
	env.str("DATABASE_CHARSET", &config.Database.Charset)
	env.int("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	env.int("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)

	// Batch
	if val := env.lookup("BATCH_MAX_BATCH_SIZE"); val != "" {
		var size int
		env.int("BATCH_MAX_BATCH_SIZE", &size)
		config.Batch.MaxBatchSize = &size
	}
	env.bool("BATCH_MULTIPLE_RESULT_SETS", &config.Batch.MultipleResultSets)

	// KV store
	env.str("KVSTORE_TYPE", &config.KVStore.Type)
	env.list("KVSTORE_ENDPOINTS", &config.KVStore.Redis.Endpoints)
	env.str("KVSTORE_PASSWORD", &config.KVStore.Redis.Password)
	env.int("KVSTORE_DB", &config.KVStore.Redis.DB)
	env.int("KVSTORE_POOL_SIZE", &config.KVStore.Redis.PoolSize)
	env.int("KVSTORE_MAX_RETRIES", &config.KVStore.MaxRetries)
	env.str("KVSTORE_REGION", &config.KVStore.DynamoDB.Region)
	env.str("KVSTORE_TABLE_NAME", &config.KVStore.DynamoDB.TableName)
	env.str("KVSTORE_ENDPOINT", &config.KVStore.DynamoDB.Endpoint)

	// Write-back
	env.str("WRITEBACK_QUEUE_TYPE", &config.WriteBack.QueueType)
	env.int("WRITEBACK_QUEUE_BUFFER_SIZE", &config.WriteBack.QueueBufferSize)
	env.str("WRITEBACK_QUEUE_PREFIX", &config.WriteBack.QueuePrefix)
	env.int("WRITEBACK_DEQUEUE_SIZE", &config.WriteBack.DequeueSize)
	env.int("WRITEBACK_DRAIN_RATE", &config.WriteBack.DrainRate)
	env.duration("WRITEBACK_DRAIN_INTERVAL", &config.WriteBack.DrainInterval)
	env.int("WRITEBACK_MAX_RETRIES", &config.WriteBack.MaxRetries)
	env.list("WRITEBACK_KAFKA_BROKERS", &config.WriteBack.Kafka.Brokers)
	env.str("WRITEBACK_KAFKA_TOPIC", &config.WriteBack.Kafka.Topic)
	env.str("WRITEBACK_KAFKA_GROUP_ID", &config.WriteBack.Kafka.GroupID)

	// Journal
	env.bool("JOURNAL_ENABLED", &config.Journal.Enabled)
	env.str("JOURNAL_PREFIX", &config.Journal.Prefix)
	env.duration("JOURNAL_TTL", &config.Journal.TTL)

	if env.err != nil {
		return env.err
	}
	return cm.apply(&config)
}

func (cm *ConfigManager) apply(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	kvTypes := []interface{}{KVStoreNone}
	for _, t := range kvstore.RegisteredTypes() {
		kvTypes = append(kvTypes, t)
	}

	err := validation.Errors{
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Host, validation.Required),
			validation.Field(&c.Database.Port, validation.Required, validation.Min(1), validation.Max(65535)),
			validation.Field(&c.Database.MaxOpenConns, validation.Required, validation.Min(1)),
			validation.Field(&c.Database.MaxIdleConns, validation.Min(0)),
		),
		"batch": validation.ValidateStruct(&c.Batch,
			validation.Field(&c.Batch.MaxBatchSize, validation.When(c.Batch.MaxBatchSize != nil, validation.Required, validation.Min(1))),
		),
		"kvstore": validation.ValidateStruct(&c.KVStore,
			validation.Field(&c.KVStore.Type, validation.Required, validation.In(kvTypes...)),
		),
		"writeback": validation.ValidateStruct(&c.WriteBack,
			validation.Field(&c.WriteBack.QueueType, validation.Required,
				validation.In(writeback.TypeMemory, writeback.TypeRedis, writeback.TypeKafka)),
			validation.Field(&c.WriteBack.DequeueSize, validation.Required, validation.Min(1)),
			validation.Field(&c.WriteBack.DrainRate, validation.Required, validation.Min(1)),
			validation.Field(&c.WriteBack.DrainInterval, validation.Required),
			validation.Field(&c.WriteBack.MaxRetries, validation.Min(0)),
		),
		"journal": validation.ValidateStruct(&c.Journal,
			validation.Field(&c.Journal.Prefix, validation.Required),
			validation.Field(&c.Journal.TTL, validation.Required),
		),
	}.Filter()
	if err != nil {
		return err
	}

	if c.KVStore.Type != KVStoreNone {
		if err := kvstore.Validate(c.KVStoreSettings()); err != nil {
			return fmt.Errorf("kvstore: %w", err)
		}
	}
	if c.WriteBack.QueueType == writeback.TypeRedis && c.KVStore.Type != "redis" {
		return fmt.Errorf("writeback: queue_type redis requires kvstore type redis")
	}
	if c.Journal.Enabled && c.KVStore.Type == KVStoreNone {
		return fmt.Errorf("journal: enabled journal requires a kvstore")
	}
	if err := c.QueueSettings().Validate(); err != nil {
		return fmt.Errorf("writeback: %w", err)
	}
	return nil
}

// envReader collects the first parse error so LoadFromEnv reads
// straight through.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) string {
	return strings.TrimSpace(e.getenv(EnvPrefix + key))
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if val := e.lookup(key); val != "" {
		*dst = val
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if val := e.lookup(key); val != "" {
		*dst = strings.Split(val, ",")
	}
}

func (e *envReader) int(key string, dst *int) {
	val := e.lookup(key)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst *bool) {
	val := e.lookup(key)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	val := e.lookup(key)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}
