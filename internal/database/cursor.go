package database

import (
	"fmt"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// CursorOption configures a SQLCursor.
type CursorOption func(*SQLCursor)

// WithMultipleResultSets forwards NextResultSet to the driver. Without
// it NextResultSet does nothing, since an EXECUTE BLOCK returns a single
// result set and database/sql closes the rows when asked to move past
// the last one.
func WithMultipleResultSets() CursorOption {
	return func(c *SQLCursor) {
		c.multipleResultSets = true
	}
}

// SQLCursor adapts core.Rows to core.ResultCursor.
type SQLCursor struct {
	rows               core.Rows
	multipleResultSets bool
}

// NewSQLCursor creates a cursor over rows. The caller keeps ownership of
// rows and must close them.
func NewSQLCursor(rows core.Rows, opts ...CursorOption) *SQLCursor {
	c := &SQLCursor{rows: rows}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Advance consumes one row without scanning it.
func (c *SQLCursor) Advance() (bool, error) {
	if c.rows.Next() {
		return true, nil
	}
	if err := c.rows.Err(); err != nil {
		return false, fmt.Errorf("failed to advance cursor: %w", err)
	}
	return false, nil
}

// Read consumes one row and scans every column.
func (c *SQLCursor) Read() (core.Row, bool, error) {
	ok, err := c.Advance()
	if err != nil || !ok {
		return nil, false, err
	}

	columns, err := c.rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get columns: %w", err)
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := c.rows.Scan(pointers...); err != nil {
		return nil, false, fmt.Errorf("failed to scan row: %w", err)
	}
	return core.Row(values), true, nil
}

// NextResultSet moves to the next result set when multiple result sets
// are enabled.
func (c *SQLCursor) NextResultSet() error {
	if !c.multipleResultSets {
		return nil
	}
	if !c.rows.NextResultSet() {
		if err := c.rows.Err(); err != nil {
			return fmt.Errorf("failed to move to next result set: %w", err)
		}
	}
	return nil
}

// Drain consumes any rows left in the cursor.
func (c *SQLCursor) Drain() error {
	for {
		ok, err := c.Advance()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}
