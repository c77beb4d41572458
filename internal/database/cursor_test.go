package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

var _ core.ResultCursor = (*SQLCursor)(nil)

type fakeRows struct {
	columns []string
	rows    [][]interface{}
	pos     int
	err     error

	nextResultSets int
	hasNextSet     bool
	closed         bool
}

func (r *fakeRows) Next() bool {
	if r.err != nil || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		*(dest[i].(*interface{})) = v
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return r.columns, nil }

func (r *fakeRows) NextResultSet() bool {
	r.nextResultSets++
	return r.hasNextSet
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func TestCursorReadAndAdvance(t *testing.T) {
	rows := &fakeRows{
		columns: []string{"AFFECTEDROWS"},
		rows:    [][]interface{}{{int64(11)}, {int64(1)}},
	}
	c := NewSQLCursor(rows)

	row, ok, err := c.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, core.Row{int64(11)}, row)

	ok, err = c.Advance()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Advance()
	require.NoError(t, err)
	require.False(t, ok)

	row, ok, err = c.Read()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, row)
}

func TestCursorNextResultSetIsNoOpByDefault(t *testing.T) {
	rows := &fakeRows{}
	require.NoError(t, NewSQLCursor(rows).NextResultSet())
	require.Equal(t, 0, rows.nextResultSets)

	require.NoError(t, NewSQLCursor(rows, WithMultipleResultSets()).NextResultSet())
	require.Equal(t, 1, rows.nextResultSets)
}

func TestCursorSurfacesDriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	c := NewSQLCursor(&fakeRows{rows: [][]interface{}{{1}}, err: boom}, WithMultipleResultSets())

	_, err := c.Advance()
	require.ErrorIs(t, err, boom)

	_, _, err = c.Read()
	require.ErrorIs(t, err, boom)

	require.ErrorIs(t, c.NextResultSet(), boom)
}

func TestCursorDrain(t *testing.T) {
	rows := &fakeRows{columns: []string{"A"}, rows: [][]interface{}{{1}, {2}, {3}}}
	require.NoError(t, NewSQLCursor(rows).Drain())
	require.Equal(t, 3, rows.pos)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.local",
		Port:     3050,
		Database: "/var/lib/firebird/data/app.fdb",
		Username: "SYSDBA",
		Password: "p@ss",
		Role:     "WRITER",
		Charset:  "UTF8",
	}
	require.Equal(t, "SYSDBA:p%40ss@db.local:3050/var/lib/firebird/data/app.fdb?charset=UTF8&role=WRITER", cfg.DSN())

	require.Equal(t, "u:p@localhost/employee", Config{Host: "localhost", Database: "employee", Username: "u", Password: "p"}.DSN())
}
