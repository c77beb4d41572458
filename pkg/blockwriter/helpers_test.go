package blockwriter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// response scripts the rows returned by one block.
type response struct {
	rows [][]interface{}
	err  error
}

type fakeDB struct {
	mu        sync.Mutex
	responses []response
	queries   []string
	args      [][]interface{}
	txs       []*fakeTx
	closed    bool
}

func (db *fakeDB) script(responses ...response) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.responses = append(db.responses, responses...)
}

func (db *fakeDB) next(query string, args []interface{}) (core.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queries = append(db.queries, query)
	db.args = append(db.args, args)
	if len(db.responses) == 0 {
		return &fakeRows{}, nil
	}
	r := db.responses[0]
	db.responses = db.responses[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{rows: r.rows}, nil
}

func (db *fakeDB) Query(_ context.Context, query string, args ...interface{}) (core.Rows, error) {
	return db.next(query, args)
}

func (db *fakeDB) Exec(context.Context, string, ...interface{}) (core.Result, error) {
	return nil, errors.New("not supported")
}

func (db *fakeDB) BeginTx(context.Context) (core.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tx := &fakeTx{db: db}
	db.txs = append(db.txs, tx)
	return tx, nil
}

func (db *fakeDB) Close() error {
	db.closed = true
	return nil
}

func (db *fakeDB) queryCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.queries)
}

type fakeTx struct {
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Query(_ context.Context, query string, args ...interface{}) (core.Rows, error) {
	return tx.db.next(query, args)
}

func (tx *fakeTx) Exec(context.Context, string, ...interface{}) (core.Result, error) {
	return nil, errors.New("not supported")
}

func (tx *fakeTx) Commit() error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

type fakeRows struct {
	rows   [][]interface{}
	cur    []interface{}
	closed bool
}

func (r *fakeRows) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	r.cur, r.rows = r.rows[0], r.rows[1:]
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	if len(dest) != len(r.cur) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.cur), len(dest))
	}
	for i, d := range dest {
		*(d.(*interface{})) = r.cur[i]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) {
	return []string{"AFFECTEDROWS"}, nil
}

func (r *fakeRows) NextResultSet() bool { return false }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeRows) Err() error { return nil }

// memoryKV is an in-memory core.KVStore.
type memoryKV struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{items: make(map[string][]byte)}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *memoryKV) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		if err := m.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryKV) Close() error { return nil }

func insertRow(name string) *core.WriteOperation {
	return &core.WriteOperation{
		Table:     "ORDERS",
		Operation: core.OperationCreate,
		Columns: []*core.ColumnModification{
			{ColumnName: "NAME", StoreType: "VARCHAR(20)", IsWrite: true, UseCurrentValueParameter: true, Value: name},
		},
		Record: &core.Record{Table: "ORDERS"},
	}
}

func insertWithIdentity(name string) *core.WriteOperation {
	op := insertRow(name)
	op.Columns = append(op.Columns, &core.ColumnModification{ColumnName: "ID", StoreType: "BIGINT", IsRead: true})
	return op
}

func updateRow(id int64, name string) *core.WriteOperation {
	return &core.WriteOperation{
		Table:     "ORDERS",
		Operation: core.OperationUpdate,
		Columns: []*core.ColumnModification{
			{ColumnName: "NAME", StoreType: "VARCHAR(20)", IsWrite: true, UseCurrentValueParameter: true, Value: name},
			{ColumnName: "ID", StoreType: "BIGINT", IsKey: true, UseOriginalValueParameter: true, OriginalValue: id},
		},
		Record: &core.Record{Table: "ORDERS", Key: id},
	}
}
