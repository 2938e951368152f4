package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryStore keeps tables in process memory. Transactions work on a copy
// that replaces the committed tables on Commit.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][][]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{tables: map[string][][]any{}}
}

// Migrate is a no-op; tables exist implicitly.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// Close releases nothing.
func (s *MemoryStore) Close() error { return nil }

// Begin snapshots the committed tables into a new transaction.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "memory: begin")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	staged := make(map[string][][]any, len(s.tables))
	for name, rows := range s.tables {
		staged[name] = append([][]any(nil), rows...)
	}
	return &memoryTx{store: s, staged: staged}, nil
}

// Query returns committed rows in insertion order.
func (s *MemoryStore) Query(ctx context.Context, table string, f Filter) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "memory: query")
	}
	nf, err := normalizeFilter(table, f)
	if err != nil {
		return nil, err
	}
	cols := schema[table]
	index := make(map[string]int, len(cols))
	for k, c := range cols {
		index[c.Name] = k
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Row
	for _, vals := range s.tables[table] {
		match := true
		for name, want := range nf {
			if vals[index[name]] != want {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		row := make(Row, len(cols))
		for k, c := range cols {
			row[c.Name] = vals[k]
		}
		out = append(out, row)
	}
	return out, nil
}

type memoryTx struct {
	store  *MemoryStore
	staged map[string][][]any
	done   bool
}

func (tx *memoryTx) Clear(ctx context.Context, tables ...string) error {
	if tx.done {
		return eris.New("memory: transaction already finished")
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "memory: clear")
	}
	for _, name := range tables {
		if err := checkTable(name); err != nil {
			return err
		}
		delete(tx.staged, name)
	}
	return nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, table string, rows []Row) error {
	if tx.done {
		return eris.New("memory: transaction already finished")
	}
	if err := checkTable(table); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "memory: insert batch")
	}
	batch := make([][]any, 0, len(rows))
	for n, row := range rows {
		vals, err := normalizeRow(table, row)
		if err != nil {
			return eris.Wrapf(err, "memory: row %d of %s", n, table)
		}
		batch = append(batch, vals)
	}
	tx.staged[table] = append(tx.staged[table], batch...)
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return eris.New("memory: transaction already finished")
	}
	tx.done = true
	tx.store.mu.Lock()
	tx.store.tables = tx.staged
	tx.store.mu.Unlock()
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	tx.staged = nil
	return nil
}
