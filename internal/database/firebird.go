package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/nakagami/firebirdsql"
	log "github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("database is closed")

// Config holds the Firebird connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Role     string
	Charset  string

	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

// DSN builds the firebirdsql data source name:
// user:password@host:port/database?role=...&charset=...
func (c Config) DSN() string {
	var dsn strings.Builder
	dsn.WriteString(url.QueryEscape(c.Username))
	dsn.WriteString(":")
	dsn.WriteString(url.QueryEscape(c.Password))
	dsn.WriteString("@")
	dsn.WriteString(c.Host)
	if c.Port > 0 {
		fmt.Fprintf(&dsn, ":%d", c.Port)
	}
	dsn.WriteString("/")
	dsn.WriteString(strings.TrimPrefix(c.Database, "/"))

	params := url.Values{}
	if c.Role != "" {
		params.Set("role", c.Role)
	}
	if c.Charset != "" {
		params.Set("charset", c.Charset)
	}
	if len(params) > 0 {
		dsn.WriteString("?")
		dsn.WriteString(params.Encode())
	}
	return dsn.String()
}

// FirebirdDatabase implements the core.Database interface using Firebird.
type FirebirdDatabase struct {
	db     *sql.DB
	closed bool
}

// NewFirebirdDatabase opens a connection pool and verifies it with a
// ping.
func NewFirebirdDatabase(cfg Config) (*FirebirdDatabase, error) {
	db, err := sql.Open("firebirdsql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("[FIREBIRD] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return NewFromDB(db), nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB) *FirebirdDatabase {
	return &FirebirdDatabase{db: db}
}

// Query executes a statement that returns rows.
func (f *FirebirdDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if f.closed {
		return nil, ErrClosed
	}
	log.Debugf("[FIREBIRD] Executing query: %s with %d arg(s)", query, len(args))
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Errorf("[FIREBIRD] Query failed: %v", err)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// Exec executes a statement that returns no rows.
func (f *FirebirdDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if f.closed {
		return nil, ErrClosed
	}
	log.Debugf("[FIREBIRD] Executing statement: %s with %d arg(s)", query, len(args))
	result, err := f.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Errorf("[FIREBIRD] Exec failed: %v", err)
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a new transaction.
func (f *FirebirdDatabase) BeginTx(ctx context.Context) (core.Transaction, error) {
	if f.closed {
		return nil, ErrClosed
	}
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTransaction{tx: tx}, nil
}

// Close closes the connection pool.
func (f *FirebirdDatabase) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.db.Close()
}

// sqlRows wraps sql.Rows to implement core.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *sqlRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sqlRows) NextResultSet() bool {
	return r.rows.NextResultSet()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

// sqlTransaction wraps sql.Tx to implement core.Transaction.
type sqlTransaction struct {
	tx *sql.Tx
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	log.Debugf("[FIREBIRD] Executing query in transaction: %s with %d arg(s)", query, len(args))
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return result, nil
}
