package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// copier is satisfied by pools, connections and transactions.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// ident builds a table identifier, schema-qualified when schema is set.
func ident(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

// CopyTable bulk-inserts rows into a table using PostgreSQL COPY protocol.
// An empty schema resolves the table through the search path.
func CopyTable(ctx context.Context, c copier, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	id := ident(schema, table)
	n, err := c.CopyFrom(ctx, id, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", id.Sanitize())
	}
	return n, nil
}
