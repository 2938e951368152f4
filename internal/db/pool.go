// Package db exports derived tables to PostGIS with COPY and keyed merges.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Pool is the subset of *pgxpool.Pool used here. pgxmock pools satisfy it.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
