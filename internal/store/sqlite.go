package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// migration builds CREATE TABLE statements from the table schema.
func migration() string {
	var b strings.Builder
	for _, name := range Tables() {
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", name)
		for k, c := range schema[name] {
			sep := ","
			if k == len(schema[name])-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "\t%s %s%s\n", c.Name, c.Type, sep)
		}
		b.WriteString(");\n")
	}
	b.WriteString(`
CREATE INDEX IF NOT EXISTS idx_chan_elems_segment ON chan_elems(segment_id);
CREATE INDEX IF NOT EXISTS idx_chan_interior_segment ON chan_interior(segment_id);
CREATE INDEX IF NOT EXISTS idx_xs_distances_segment ON xs_distances(segment_id);
CREATE INDEX IF NOT EXISTS idx_levee_data_cell ON levee_data(cell_id);
CREATE INDEX IF NOT EXISTS idx_fpxsec_cells_fid ON fpxsec_cells(fpxsec_fid);
`)
	return b.String()
}

// Migrate creates every table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration())
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Begin starts a database transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

// Query returns committed rows ordered by insertion.
func (s *SQLiteStore) Query(ctx context.Context, table string, f Filter) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	nf, err := normalizeFilter(table, f)
	if err != nil {
		return nil, err
	}
	names, _ := ColumnNames(table)

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), table)
	var args []any
	var where []string
	for _, name := range filterColumns(nf) {
		if nf[name] == nil {
			where = append(where, name+" IS NULL")
			continue
		}
		where = append(where, name+" = ?")
		args = append(args, nf[name])
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", table)
	}
	defer rows.Close() //nolint:errcheck

	cols := schema[table]
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for k := range vals {
			ptrs[k] = &vals[k]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		row := make(Row, len(cols))
		for k, c := range cols {
			v, err := Coerce(c, vals[k])
			if err != nil {
				return nil, err
			}
			row[c.Name] = v
		}
		out = append(out, row)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Clear(ctx context.Context, tables ...string) error {
	for _, name := range tables {
		if err := checkTable(name); err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", name)
		}
	}
	return nil
}

func (t *sqliteTx) InsertBatch(ctx context.Context, table string, rows []Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	names, _ := ColumnNames(table)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := t.tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), marks))
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for n, row := range rows {
		vals, err := normalizeRow(table, row)
		if err != nil {
			return eris.Wrapf(err, "sqlite: row %d of %s", n, table)
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return eris.Wrapf(err, "sqlite: insert into %s", table)
		}
	}
	return nil
}

func (t *sqliteTx) Commit() error {
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return eris.Wrap(err, "sqlite: rollback")
}
