// Package store persists derived schematization tables. A run writes through
// a transaction: tables are cleared, rows inserted in batches, and nothing
// becomes visible to Query until Commit.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one record keyed by column name. Values are int64, float64, string
// or nil once stored.
type Row map[string]any

// Filter selects rows whose columns equal the given values.
type Filter map[string]any

// Store defines the persistence interface for derived tables.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Query(ctx context.Context, table string, f Filter) ([]Row, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tx stages changes to derived tables.
type Tx interface {
	Clear(ctx context.Context, tables ...string) error
	InsertBatch(ctx context.Context, table string, rows []Row) error
	Commit() error
	Rollback() error
}

// ColumnType is the storage class of a column.
type ColumnType string

// Column storage classes.
const (
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
	Text    ColumnType = "TEXT"
)

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
	// Geometry marks TEXT columns holding WKT.
	Geometry bool
}

// Table names.
const (
	TableChan        = "chan"
	TableChanElems   = "chan_elems"
	TableInterior    = "chan_interior"
	TableRightBank   = "rbank"
	TableDistances   = "xs_distances"
	TableConfluences = "chan_confluences"
	TableNoExchange  = "noexchange"
	TableUserXS      = "user_xs"
	TableStations    = "user_xs_stations"
	TableLevees      = "levee_data"
	TableFailures    = "levee_failure"
	TableFPXS        = "fpxsec"
	TableFPXSCells   = "fpxsec_cells"
	TableRuns        = "runs"
)

func intCol(name string) Column  { return Column{Name: name, Type: Integer} }
func realCol(name string) Column { return Column{Name: name, Type: Real} }
func textCol(name string) Column { return Column{Name: name, Type: Text} }
func geomCol(name string) Column { return Column{Name: name, Type: Text, Geometry: true} }

var schema = map[string][]Column{
	TableChan: {
		intCol("segment_id"), textCol("name"), intCol("lb_fid"), intCol("rb_fid"),
		realCol("depinitial"), realCol("froudc"), realCol("roughadj"), intCol("isedn"), intCol("rank"),
		intCol("istart"), realCol("wselstart"), intCol("iend"), realCol("wselend"), geomCol("geom"),
	},
	TableChanElems: {
		intCol("id"), intCol("segment_id"), intCol("order_in_segment"), intCol("user_xs_fid"), intCol("interpolated"),
		realCol("fcn"), realCol("xlen"), intCol("lbankgrid"), intCol("rbankgrid"), geomCol("geom"),
	},
	TableInterior:    {intCol("segment_id"), intCol("xs_id"), intCol("cell_id")},
	TableRightBank:   {intCol("segment_id"), intCol("rb_fid"), geomCol("geom")},
	TableDistances:   {intCol("xs_id"), intCol("segment_id"), intCol("up_id"), intCol("lo_id"), realCol("dist_lb"), realCol("dist_rb"), realCol("total_lb"), realCol("total_rb")},
	TableConfluences: {intCol("trib_segment"), intCol("trib_cell"), intCol("main_segment"), intCol("main_cell"), textCol("side")},
	TableNoExchange:  {intCol("cell_id")},
	TableUserXS:      {intCol("fid"), textCol("name"), textCol("type"), realCol("manning"), textCol("params"), geomCol("geom")},
	TableStations:    {intCol("user_xs_fid"), intCol("station_order"), realCol("x"), realCol("y")},
	TableLevees:      {intCol("cell_id"), intCol("direction"), realCol("crest"), intCol("line_fid"), geomCol("geom")},
	TableFailures: {
		intCol("cell_id"), intCol("direction"), realCol("fail_elev"), intCol("line_fid"),
		realCol("failtime"), realCol("levbase"), realCol("failwidthmax"), realCol("failrate"), realCol("failwidrate"),
	},
	TableFPXS:      {intCol("fid"), textCol("name"), intCol("iflo"), realCol("azimuth"), intCol("n_cells"), geomCol("geom")},
	TableFPXSCells: {intCol("fpxsec_fid"), intCol("cell_order"), intCol("cell_id")},
	TableRuns: {
		textCol("id"), textCol("kind"), textCol("started_at"), textCol("finished_at"),
		intCol("ok"), intCol("cancelled"), intCol("skipped"), textCol("counts"),
	},
}

// Tables returns every table name in sorted order.
func Tables() []string {
	out := make([]string, 0, len(schema))
	for name := range schema {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DerivedTables returns the tables a schematization run rewrites, leaving
// out the run log.
func DerivedTables() []string {
	var out []string
	for _, name := range Tables() {
		if name != TableRuns {
			out = append(out, name)
		}
	}
	return out
}

// Columns returns the ordered columns of a table.
func Columns(table string) ([]Column, error) {
	cols, ok := schema[table]
	if !ok {
		return nil, eris.Errorf("store: unknown table %q", table)
	}
	return append([]Column(nil), cols...), nil
}

// ColumnNames returns the ordered column names of a table.
func ColumnNames(table string) ([]string, error) {
	cols, err := Columns(table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for k, c := range cols {
		names[k] = c.Name
	}
	return names, nil
}

func column(table, name string) (Column, error) {
	for _, c := range schema[table] {
		if c.Name == name {
			return c, nil
		}
	}
	return Column{}, eris.Errorf("store: table %s has no column %q", table, name)
}

// Coerce converts v to the storage class of c. Strings are parsed for
// numeric columns so HTTP query parameters can be used as filters.
func Coerce(c Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case Integer:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case float64:
			if x != math.Trunc(x) {
				return nil, eris.Errorf("store: column %s expects an integer, got %v", c.Name, x)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "store: column %s", c.Name)
			}
			return n, nil
		}
	case Real:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case *float64:
			if x == nil {
				return nil, nil
			}
			return *x, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, eris.Wrapf(err, "store: column %s", c.Name)
			}
			return f, nil
		}
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	}
	return nil, eris.Errorf("store: column %s (%s) cannot hold %T", c.Name, c.Type, v)
}

// normalizeRow checks a row against the table schema and returns its values
// in column order.
func normalizeRow(table string, row Row) ([]any, error) {
	cols := schema[table]
	for name := range row {
		if _, err := column(table, name); err != nil {
			return nil, err
		}
	}
	vals := make([]any, len(cols))
	for k, c := range cols {
		v, err := Coerce(c, row[c.Name])
		if err != nil {
			return nil, err
		}
		vals[k] = v
	}
	return vals, nil
}

// normalizeFilter validates filter columns and coerces the values.
func normalizeFilter(table string, f Filter) (Filter, error) {
	out := make(Filter, len(f))
	for name, v := range f {
		c, err := column(table, name)
		if err != nil {
			return nil, err
		}
		if out[name], err = Coerce(c, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// filterColumns returns the filter keys in sorted order.
func filterColumns(f Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkTable(table string) error {
	if _, ok := schema[table]; !ok {
		return eris.Errorf("store: unknown table %q", table)
	}
	return nil
}
