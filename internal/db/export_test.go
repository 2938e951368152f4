package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/flo2d-schematizer/internal/store"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBatch(ctx, store.TableLevees, []store.Row{
		{"cell_id": 101, "direction": 1, "crest": 1000.0, "line_fid": 1, "geom": "LINESTRING (1 9, 9 9)"},
		{"cell_id": 102, "direction": 1, "crest": 1000.0, "line_fid": 1},
	}))
	require.NoError(t, tx.InsertBatch(ctx, store.TableRuns, []store.Row{
		{"id": "run-1", "kind": "levee", "ok": true, "cancelled": false, "skipped": 0},
	}))
	require.NoError(t, tx.Commit())
	return st
}

func TestEncodeEWKB(t *testing.T) {
	data, err := EncodeEWKB("LINESTRING (0 0, 10 5)", 26915)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	ls, ok := g.(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, 26915, ls.SRID())
	assert.Equal(t, []float64{0, 0, 10, 5}, ls.FlatCoords())

	data, err = EncodeEWKB("  ", 26915)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = EncodeEWKB("LINESTRING (0 0", 26915)
	assert.Error(t, err)
	_, err = EncodeEWKB("GEOMETRYCOLLECTION EMPTY", 26915)
	assert.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	e := &Exporter{Schema: "flo2d", SRID: 2277}
	cols, err := store.Columns(store.TableLevees)
	require.NoError(t, err)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "flo2d"."levee_data" ("cell_id" bigint, "direction" bigint, "crest" double precision, "line_fid" bigint, "geom" geometry(Geometry, 2277))`,
		e.createTableSQL(store.TableLevees, cols))

	cols, err = store.Columns(store.TableRuns)
	require.NoError(t, err)
	assert.Contains(t, e.createTableSQL(store.TableRuns, cols), `"id" text PRIMARY KEY`)
}

func TestExport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "flo2d"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "flo2d"."levee_data"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE "flo2d"."levee_data"`)).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"flo2d", "levee_data"}, []string{"cell_id", "direction", "crest", "line_fid", "geom"}).
		WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "flo2d"."runs"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_merge_runs"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_merge_runs"},
		[]string{"id", "kind", "started_at", "finished_at", "ok", "cancelled", "skipped", "counts"}).WillReturnResult(1)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "flo2d"."runs"`)).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	e := &Exporter{Pool: mock, Schema: "flo2d", SRID: 2277}
	counts, err := e.Export(context.Background(), seedStore(t), []string{store.TableLevees, store.TableRuns})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{store.TableLevees: 2, store.TableRuns: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExport_UnknownTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := &Exporter{Pool: mock, SRID: 2277}
	_, err = e.Export(context.Background(), seedStore(t), []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeRows(t *testing.T) {
	e := &Exporter{SRID: 2277}
	rows, err := e.encodeRows(store.TableLevees, []store.Row{
		{"cell_id": int64(101), "direction": int64(1), "crest": 1000.0, "line_fid": int64(1), "geom": "LINESTRING (1 9, 9 9)"},
		{"cell_id": int64(102), "direction": int64(1), "crest": 1000.0, "line_fid": int64(1), "geom": nil},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(101), rows[0][0])
	assert.IsType(t, []byte{}, rows[0][4])
	assert.Nil(t, rows[1][4])

	_, err = e.encodeRows(store.TableLevees, []store.Row{{"geom": 5}})
	assert.Error(t, err)
}
