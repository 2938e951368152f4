package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// merge describes a keyed merge of rows into an existing table.
type merge struct {
	schema, table string
	columns       []string
	keys          []string
}

// updates lists the non-key columns, which are overwritten on conflict.
func (m merge) updates() []string {
	key := make(map[string]bool, len(m.keys))
	for _, k := range m.keys {
		key[k] = true
	}
	var out []string
	for _, c := range m.columns {
		if !key[c] {
			out = append(out, c)
		}
	}
	return out
}

// mergeRows COPYs rows into a temp table shaped like the target and merges
// them with INSERT ... ON CONFLICT. Rows already present under the same key
// are updated; the rest of the table is left alone.
func mergeRows(ctx context.Context, tx pgx.Tx, m merge, rows [][]any) (int64, error) {
	if len(m.columns) == 0 || len(m.keys) == 0 {
		return 0, eris.Errorf("db: merge %s: columns and keys are required", m.table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	target := ident(m.schema, m.table).Sanitize()
	temp := pgx.Identifier{"_merge_" + m.table}

	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", temp.Sanitize(), target)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: temp table", m.table)
	}
	if _, err := tx.CopyFrom(ctx, temp, m.columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: copy", m.table)
	}

	action := "DO NOTHING"
	if cols := m.updates(); len(cols) > 0 {
		set := make([]string, len(cols))
		for k, c := range cols {
			q := pgx.Identifier{c}.Sanitize()
			set[k] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	cols := quoteAll(m.columns)
	sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		target, cols, cols, temp.Sanitize(), quoteAll(m.keys), action)

	tag, err := tx.Exec(ctx, sql)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s", m.table)
	}
	return tag.RowsAffected(), nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for k, n := range names {
		quoted[k] = pgx.Identifier{n}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
