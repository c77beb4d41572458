// Package kvstore provides the key-value stores backing the
// acknowledgement journal. Backends register a Factory in init and are
// created by type name.
package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("KV store is closed")

// Factory creates KV stores of one backend type.
type Factory interface {
	// Create creates a new KV store instance based on the provided configuration.
	Create(config Config) (core.KVStore, error)

	// Type returns the type identifier for this factory (e.g., "redis", "dynamodb").
	Type() string

	// Validate validates the configuration specific to this KV store type.
	Validate(config Config) error
}

// Config represents the configuration needed to create a KV store.
type Config struct {
	Type string

	// Redis
	Endpoints    []string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DynamoDB
	Region          string
	TableName       string
	Endpoint        string // optional, for LocalStack
	AccessKeyID     string // optional, IAM role otherwise
	SecretAccessKey string // optional, IAM role otherwise
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a KV store factory. It panics on a nil
// factory or a duplicate type.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Validate checks config with the factory registered for config.Type.
func Validate(config Config) error {
	factory, err := lookup(config.Type)
	if err != nil {
		return err
	}
	if err := factory.Validate(config); err != nil {
		return fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return nil
}

// Create validates config and creates a KV store with the factory
// registered for config.Type.
func Create(config Config) (core.KVStore, error) {
	if err := Validate(config); err != nil {
		return nil, err
	}
	factory, _ := lookup(config.Type)
	return factory.Create(config)
}

func lookup(storeType string) (Factory, error) {
	if storeType == "" {
		return nil, fmt.Errorf("kvstore type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[storeType]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported KV store type: %s", storeType)
	}
	return factory, nil
}

// RegisteredTypes returns the registered KV store types, sorted.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a KV store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
