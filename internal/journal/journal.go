// Package journal records which write operations were committed, keyed
// by operation ID, in a KV store.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

const (
	// DefaultPrefix namespaces journal keys.
	DefaultPrefix = "blockwriter"

	// DefaultTTL is how long acknowledgements are kept.
	DefaultTTL = 7 * 24 * time.Hour

	// otherTable stands in for the table of operations that have none.
	otherTable = "_"
)

// Entry is the acknowledgement of one committed operation.
type Entry struct {
	OperationID string             `json:"operation_id"`
	BatchID     string             `json:"batch_id"`
	Table       string             `json:"table"`
	Operation   core.OperationType `json:"operation"`
	Key         interface{}        `json:"key,omitempty"`

	// Values holds the record values after result propagation.
	Values map[string]interface{} `json:"values,omitempty"`

	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// Journal stores acknowledgements under {prefix}:{table}:ack:{id}.
type Journal struct {
	kvStore core.KVStore
	prefix  string
	ttl     time.Duration
	now     func() time.Time
}

// New creates a journal. An empty prefix or non-positive ttl selects the
// defaults.
func New(kvStore core.KVStore, prefix string, ttl time.Duration) *Journal {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Journal{
		kvStore: kvStore,
		prefix:  prefix,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key returns the KV key of an operation's acknowledgement.
func (j *Journal) Key(table, operationID string) string {
	if table == "" {
		table = otherTable
	}
	return fmt.Sprintf("%s:%s:ack:%s", j.prefix, table, operationID)
}

// Acknowledge records every operation of a committed batch in one
// BatchSet call and returns the generated batch ID. Operations without
// an ID are given one.
func (j *Journal) Acknowledge(ctx context.Context, ops []*core.WriteOperation) (string, error) {
	batchID := uuid.NewString()
	if len(ops) == 0 {
		return batchID, nil
	}

	now := j.now()
	items := make(map[string][]byte, len(ops))
	for _, op := range ops {
		if op.ID == "" {
			op.ID = uuid.NewString()
		}
		entry := Entry{
			OperationID:    op.ID,
			BatchID:        batchID,
			Table:          op.Table,
			Operation:      op.Operation,
			AcknowledgedAt: now,
		}
		if op.Record != nil {
			entry.Key = op.Record.Key
			entry.Values = op.Record.Values
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return "", fmt.Errorf("failed to marshal journal entry for %s: %w", op.ID, err)
		}
		items[j.Key(op.Table, op.ID)] = data
	}

	if err := j.kvStore.BatchSet(ctx, items, j.ttl); err != nil {
		return "", fmt.Errorf("failed to store journal entries: %w", err)
	}
	log.Debugf("[JOURNAL] Acknowledged batch %s (%d operation(s))", batchID, len(ops))
	return batchID, nil
}

// IsAcknowledged reports whether the operation has been acknowledged.
func (j *Journal) IsAcknowledged(ctx context.Context, table, operationID string) (bool, error) {
	exists, err := j.kvStore.Exists(ctx, j.Key(table, operationID))
	if err != nil {
		return false, fmt.Errorf("failed to check acknowledgement: %w", err)
	}
	return exists, nil
}

// Get returns the acknowledgement of an operation. A missing entry
// yields an error matching core.ErrKeyNotFound.
func (j *Journal) Get(ctx context.Context, table, operationID string) (*Entry, error) {
	data, err := j.kvStore.Get(ctx, j.Key(table, operationID))
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal entry: %w", err)
	}
	return &entry, nil
}
