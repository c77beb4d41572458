package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OperationType represents the type of write operation.
type OperationType string

const (
	// OperationCreate represents an INSERT operation.
	OperationCreate OperationType = "CREATE"

	// OperationUpdate represents an UPDATE operation.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a DELETE operation.
	OperationDelete OperationType = "DELETE"

	// OperationOther represents any statement that is not a row-level
	// insert, update or delete. It is rendered one statement at a time
	// and never grouped.
	OperationOther OperationType = "OTHER"
)

// ErrInvalidOperation is returned when a write operation is malformed.
var ErrInvalidOperation = errors.New("invalid write operation")

// ColumnModification describes how one column takes part in a write
// operation. IsRead, IsWrite, UseCurrentValueParameter and
// UseOriginalValueParameter must not change once the owning operation
// has been created.
type ColumnModification struct {
	// ColumnName is the backend column name.
	ColumnName string `json:"column_name" yaml:"column_name"`

	// StoreType is the backend type used to declare the column's
	// parameters (e.g. "INTEGER", "VARCHAR(100)"). When empty the type is
	// inferred from Value.
	StoreType string `json:"store_type,omitempty" yaml:"store_type,omitempty"`

	// IsRead marks a column whose value is computed by the server and
	// must be propagated back into the record.
	IsRead bool `json:"is_read,omitempty" yaml:"is_read,omitempty"`

	// IsWrite marks a column whose value is written by the operation.
	IsWrite bool `json:"is_write,omitempty" yaml:"is_write,omitempty"`

	// IsKey marks a primary key column.
	IsKey bool `json:"is_key,omitempty" yaml:"is_key,omitempty"`

	// IsCondition marks a column used to locate the row (keys and
	// concurrency tokens).
	IsCondition bool `json:"is_condition,omitempty" yaml:"is_condition,omitempty"`

	// UseCurrentValueParameter means Value is sent as a parameter.
	UseCurrentValueParameter bool `json:"use_current_value_parameter,omitempty" yaml:"use_current_value_parameter,omitempty"`

	// UseOriginalValueParameter means OriginalValue is sent as a parameter.
	UseOriginalValueParameter bool `json:"use_original_value_parameter,omitempty" yaml:"use_original_value_parameter,omitempty"`

	// Value is the current (new) value of the column.
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	// OriginalValue is the value the row is expected to hold, used by
	// optimistic-concurrency conditions.
	OriginalValue interface{} `json:"original_value,omitempty" yaml:"original_value,omitempty"`
}

// ParameterCount returns how many parameters the column contributes.
func (c *ColumnModification) ParameterCount() int {
	n := 0
	if c.UseCurrentValueParameter {
		n++
	}
	if c.UseOriginalValueParameter {
		n++
	}
	return n
}

// Record is the caller's in-memory row. Write operations hold a pointer
// to it; server-computed values are written into Values during
// reconciliation.
type Record struct {
	// Table is the name of the table the record belongs to.
	Table string `json:"table" yaml:"table"`

	// Key is the primary key value of the record, if known.
	Key interface{} `json:"key,omitempty" yaml:"key,omitempty"`

	// Values holds column values keyed by column name.
	Values map[string]interface{} `json:"values,omitempty" yaml:"values,omitempty"`
}

// SetValue stores a column value on the record.
func (r *Record) SetValue(column string, value interface{}) {
	if r.Values == nil {
		r.Values = make(map[string]interface{})
	}
	r.Values[column] = value
}

func (r *Record) String() string {
	if r == nil {
		return "<nil record>"
	}
	return fmt.Sprintf("%s[%v]", r.Table, r.Key)
}

// WriteOperation represents a single row-level write against the
// backend.
type WriteOperation struct {
	// ID uniquely identifies the operation once it has been queued.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Table is the name of the table this operation targets.
	Table string `json:"table" yaml:"table"`

	// Schema is the schema of the table, if any.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Operation is the type of operation (CREATE, UPDATE, DELETE, OTHER).
	Operation OperationType `json:"operation" yaml:"operation"`

	// Columns lists the column modifications in their original order.
	Columns []*ColumnModification `json:"columns,omitempty" yaml:"columns,omitempty"`

	// Statement is the raw statement executed for OTHER operations.
	Statement string `json:"statement,omitempty" yaml:"statement,omitempty"`

	// Record points at the caller's record. It is never copied.
	Record *Record `json:"record,omitempty" yaml:"record,omitempty"`

	// Timestamp is when the operation was originally submitted.
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// RetryCount tracks how many times this operation has been retried.
	RetryCount int `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
}

// ReadColumns returns the columns whose values are returned by the
// server, in original order.
func (op *WriteOperation) ReadColumns() []*ColumnModification {
	var cols []*ColumnModification
	for _, c := range op.Columns {
		if c.IsRead {
			cols = append(cols, c)
		}
	}
	return cols
}

// WriteColumns returns the columns written by the operation, in
// original order.
func (op *WriteOperation) WriteColumns() []*ColumnModification {
	var cols []*ColumnModification
	for _, c := range op.Columns {
		if c.IsWrite {
			cols = append(cols, c)
		}
	}
	return cols
}

// ConditionColumns returns the columns used to locate the row.
func (op *WriteOperation) ConditionColumns() []*ColumnModification {
	var cols []*ColumnModification
	for _, c := range op.Columns {
		if c.IsCondition || c.IsKey {
			cols = append(cols, c)
		}
	}
	return cols
}

// RequiresResultPropagation reports whether the server returns values
// that must be written back into the record.
func (op *WriteOperation) RequiresResultPropagation() bool {
	for _, c := range op.Columns {
		if c.IsRead {
			return true
		}
	}
	return false
}

// ParameterCount returns the number of parameters the operation needs.
func (op *WriteOperation) ParameterCount() int {
	n := 0
	for _, c := range op.Columns {
		n += c.ParameterCount()
	}
	return n
}

// Validate checks that the operation is well formed.
func (op *WriteOperation) Validate() error {
	if op == nil {
		return fmt.Errorf("%w: operation cannot be nil", ErrInvalidOperation)
	}
	switch op.Operation {
	case OperationCreate, OperationUpdate, OperationDelete:
		if op.Table == "" {
			return fmt.Errorf("%w: table name is required", ErrInvalidOperation)
		}
	case OperationOther:
		if op.Statement == "" {
			return fmt.Errorf("%w: statement is required for %s operations", ErrInvalidOperation, op.Operation)
		}
		if op.RequiresResultPropagation() {
			return fmt.Errorf("%w: %s operations cannot read columns", ErrInvalidOperation, op.Operation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, op.Operation)
	}

	if op.Operation != OperationDelete && len(op.WriteColumns()) == 0 {
		return fmt.Errorf("%w: %s on %s writes no columns", ErrInvalidOperation, op.Operation, op.Table)
	}
	if op.Operation != OperationCreate && len(op.ConditionColumns()) == 0 {
		return fmt.Errorf("%w: %s on %s has no key or condition columns", ErrInvalidOperation, op.Operation, op.Table)
	}
	for _, c := range op.Columns {
		if c.ColumnName == "" {
			return fmt.Errorf("%w: column name is required", ErrInvalidOperation)
		}
	}
	return nil
}

// WriteBackQueue defines the interface for managing write-back operations.
// The queue stores operations waiting to be written to the backend in
// execute blocks.
type WriteBackQueue interface {
	// Enqueue adds a write operation to the queue.
	Enqueue(ctx context.Context, operation *WriteOperation) error

	// Dequeue retrieves a batch of write operations from the queue.
	// The batchSize parameter controls how many operations to retrieve.
	// Returns an empty slice if no operations are available.
	Dequeue(ctx context.Context, batchSize int) ([]*WriteOperation, error)

	// Size returns the current number of operations in the queue.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}

// ErrKeyNotFound is returned by KVStore.Get for missing or expired keys.
var ErrKeyNotFound = errors.New("key not found")
