package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/flo2d-schematizer/internal/store"
)

// Exporter copies derived tables from a store into PostGIS.
type Exporter struct {
	Pool   Pool
	Schema string
	SRID   int
}

// Connect opens a pgx pool for url.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "db: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}

// Export replaces the PostGIS copies of tables with the rows committed in
// src. The runs table is merged by id instead of replaced. Everything happens
// in one transaction; the returned map counts rows per table.
func (e *Exporter) Export(ctx context.Context, src store.Store, tables []string) (map[string]int64, error) {
	encoded := make([][][]any, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	for k, table := range tables {
		g.Go(func() error {
			rows, err := src.Query(gctx, table, nil)
			if err != nil {
				return err
			}
			encoded[k], err = e.encodeRows(table, rows)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "db: export: read store")
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: export: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if e.Schema != "" {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{e.Schema}.Sanitize()); err != nil {
			return nil, eris.Wrap(err, "db: export: create schema")
		}
	}

	counts := make(map[string]int64, len(tables))
	for k, table := range tables {
		cols, _ := store.Columns(table)
		if _, err := tx.Exec(ctx, e.createTableSQL(table, cols)); err != nil {
			return nil, eris.Wrapf(err, "db: export: create %s", table)
		}
		names, _ := store.ColumnNames(table)

		if table == store.TableRuns {
			n, err := mergeRows(ctx, tx, merge{schema: e.Schema, table: table, columns: names, keys: []string{"id"}}, encoded[k])
			if err != nil {
				return nil, err
			}
			counts[table] = n
			continue
		}

		if _, err := tx.Exec(ctx, "TRUNCATE "+ident(e.Schema, table).Sanitize()); err != nil {
			return nil, eris.Wrapf(err, "db: export: truncate %s", table)
		}
		n, err := CopyTable(ctx, tx, e.Schema, table, names, encoded[k])
		if err != nil {
			return nil, err
		}
		counts[table] = n
		zap.L().Debug("db: exported table", zap.String("table", table), zap.Int64("rows", n))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: export: commit tx")
	}
	return counts, nil
}

// createTableSQL maps the store schema onto PostgreSQL types. Geometry
// columns become PostGIS geometries in the exporter's SRID.
func (e *Exporter) createTableSQL(table string, cols []store.Column) string {
	defs := make([]string, len(cols))
	for k, c := range cols {
		typ := "text"
		switch {
		case c.Geometry:
			typ = fmt.Sprintf("geometry(Geometry, %d)", e.SRID)
		case c.Type == store.Integer:
			typ = "bigint"
		case c.Type == store.Real:
			typ = "double precision"
		}
		if table == store.TableRuns && c.Name == "id" {
			typ += " PRIMARY KEY"
		}
		defs[k] = pgx.Identifier{c.Name}.Sanitize() + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident(e.Schema, table).Sanitize(), strings.Join(defs, ", "))
}

// encodeRows orders row values by column and converts WKT geometry to EWKB.
func (e *Exporter) encodeRows(table string, rows []store.Row) ([][]any, error) {
	cols, err := store.Columns(table)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(rows))
	for n, row := range rows {
		vals := make([]any, len(cols))
		for k, c := range cols {
			v := row[c.Name]
			if c.Geometry && v != nil {
				s, ok := v.(string)
				if !ok {
					return nil, eris.Errorf("db: %s.%s row %d holds %T, want WKT", table, c.Name, n, v)
				}
				if v, err = EncodeEWKB(s, e.SRID); err != nil {
					return nil, eris.Wrapf(err, "db: %s row %d", table, n)
				}
			}
			vals[k] = v
		}
		out[n] = vals
	}
	return out, nil
}

// EncodeEWKB converts WKT to little-endian EWKB carrying srid. Empty input
// encodes to nil.
func EncodeEWKB(s string, srid int) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse wkt")
	}
	switch t := g.(type) {
	case *geom.Point:
		g = t.SetSRID(srid)
	case *geom.LineString:
		g = t.SetSRID(srid)
	case *geom.Polygon:
		g = t.SetSRID(srid)
	case *geom.MultiLineString:
		g = t.SetSRID(srid)
	case *geom.MultiPolygon:
		g = t.SetSRID(srid)
	default:
		return nil, eris.Errorf("db: unsupported geometry %T", g)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "db: encode EWKB")
	}
	return data, nil
}
