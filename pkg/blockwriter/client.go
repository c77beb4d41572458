package blockwriter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/config"
	"github.com/rzpsarthak13/blockwriter/internal/core"
	"github.com/rzpsarthak13/blockwriter/internal/database"
	"github.com/rzpsarthak13/blockwriter/internal/journal"
	"github.com/rzpsarthak13/blockwriter/internal/kvstore"
	"github.com/rzpsarthak13/blockwriter/internal/sqlgen"
	"github.com/rzpsarthak13/blockwriter/internal/writeback"
)

// Client wires the database, KV store, journal, write-back queue, writer
// and drainer described by a Config.
//
// Typical usage:
//
//	client, _ := blockwriter.NewClient(cfg)
//	defer client.Close()
//
//	client.Start(ctx) // background drainer
//	client.Submit(ctx, op)
type Client struct {
	mu     sync.Mutex
	closed bool

	config  *Config
	db      core.Database
	kvStore core.KVStore
	journal *journal.Journal
	queue   core.WriteBackQueue
	writer  *Writer
	drainer *Drainer
}

// NewClient connects to Firebird and, when configured, the KV store.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var kvStore core.KVStore
	if cfg.KVStore.Type != config.KVStoreNone {
		store, err := kvstore.Create(cfg.KVStoreSettings())
		if err != nil {
			return nil, fmt.Errorf("failed to create KV store: %w", err)
		}
		kvStore = store
	}

	db, err := database.NewFirebirdDatabase(cfg.DatabaseSettings())
	if err != nil {
		if kvStore != nil {
			kvStore.Close()
		}
		return nil, err
	}

	c, err := newClient(cfg, db, kvStore)
	if err != nil {
		db.Close()
		if kvStore != nil {
			kvStore.Close()
		}
		return nil, err
	}
	return c, nil
}

// newClient builds the client on top of an open database and an
// optional KV store.
func newClient(cfg *Config, db core.Database, kvStore core.KVStore) (*Client, error) {
	c := &Client{
		config:  cfg,
		db:      db,
		kvStore: kvStore,
	}

	opts := writerOptions(cfg)
	if cfg.Journal.Enabled {
		if kvStore == nil {
			return nil, fmt.Errorf("journal requires a KV store")
		}
		c.journal = journal.New(kvStore, cfg.Journal.Prefix, cfg.Journal.TTL)
		opts = append(opts, WithJournal(c.journal))
	}

	writer, err := NewWriter(db, sqlgen.NewFirebirdGenerator(), opts...)
	if err != nil {
		return nil, err
	}
	c.writer = writer

	queue, err := writeback.NewQueue(cfg.QueueSettings(), kvStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create write-back queue: %w", err)
	}
	c.queue = queue
	c.drainer = NewDrainer(queue, writer, drainerConfig(cfg))

	log.Printf("[CLIENT] Ready: queue %s, kvstore %s, journal %v", cfg.WriteBack.QueueType, cfg.KVStore.Type, cfg.Journal.Enabled)
	return c, nil
}

// Writer returns the client's writer.
func (c *Client) Writer() *Writer {
	return c.writer
}

// Drainer returns the client's drainer.
func (c *Client) Drainer() *Drainer {
	return c.drainer
}

// Execute runs ops immediately. See Writer.Execute.
func (c *Client) Execute(ctx context.Context, ops []*core.WriteOperation) (*Result, error) {
	return c.writer.Execute(ctx, ops)
}

// Submit queues op for the drainer. The operation is given an ID if it
// has none.
func (c *Client) Submit(ctx context.Context, op *core.WriteOperation) error {
	return c.queue.Enqueue(ctx, op)
}

// IsAcknowledged reports whether the journal holds the operation.
func (c *Client) IsAcknowledged(ctx context.Context, table, operationID string) (bool, error) {
	if c.journal == nil {
		return false, ErrJournalDisabled
	}
	return c.journal.IsAcknowledged(ctx, table, operationID)
}

// Acknowledgement returns the journal entry of an operation.
func (c *Client) Acknowledgement(ctx context.Context, table, operationID string) (*journal.Entry, error) {
	if c.journal == nil {
		return nil, ErrJournalDisabled
	}
	return c.journal.Get(ctx, table, operationID)
}

// Start starts the background drainer.
func (c *Client) Start(ctx context.Context) error {
	return c.drainer.Start(ctx)
}

// Stop stops the background drainer.
func (c *Client) Stop() error {
	return c.drainer.Stop()
}

// IsRunning returns whether the drainer is running.
func (c *Client) IsRunning() bool {
	return c.drainer.IsRunning()
}

// Close stops the drainer and closes the queue, the KV store and the
// database.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.drainer.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := c.queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close queue: %w", err))
	}
	if c.kvStore != nil {
		if err := c.kvStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close KV store: %w", err))
		}
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
