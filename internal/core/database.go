package core

import (
	"context"
)

// Database is the relational backend execute blocks are sent to.
type Database interface {
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the connection pool.
	Close() error
}

// Transaction is a backend transaction. A block and the draining of its
// cursor happen inside one transaction.
type Transaction interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Commit() error
	Rollback() error
}

// Rows is the driver-level row stream.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	NextResultSet() bool
	Close() error
	Err() error
}

// Result is the outcome of a statement executed with Exec.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
