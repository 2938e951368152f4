package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/store"
)

// dBase limits.
const (
	maxFieldName = 10
	maxString    = 254
)

// GeometryTables returns the tables that carry a geometry column.
func GeometryTables() []string {
	var out []string
	for _, table := range store.Tables() {
		if _, ok := geometryColumn(table); ok {
			out = append(out, table)
		}
	}
	return out
}

// Shapefiles writes one <table>.shp per table from the rows committed in src
// and returns the number of features written per table. Tables without a
// geometry column or without rows are skipped. A shapefile holds a single
// shape type, taken from the first geometry; rows of another type are
// skipped with a warning.
func Shapefiles(ctx context.Context, src store.Store, dir string, tables []string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return counts, model.ErrCancelled
		}
		if _, ok := geometryColumn(table); !ok {
			continue
		}
		rows, err := src.Query(ctx, table, nil)
		if err != nil {
			return counts, eris.Wrapf(err, "export: query %s", table)
		}
		n, err := writeLayer(filepath.Join(dir, table+".shp"), table, rows)
		if err != nil {
			return counts, err
		}
		if n > 0 {
			counts[table] = n
		}
	}
	return counts, nil
}

func geometryColumn(table string) (store.Column, bool) {
	cols, err := store.Columns(table)
	if err != nil {
		return store.Column{}, false
	}
	for _, c := range cols {
		if c.Geometry {
			return c, true
		}
	}
	return store.Column{}, false
}

type feature struct {
	row   store.Row
	shape shp.Shape
	typ   shp.ShapeType
}

func writeLayer(path, table string, rows []store.Row) (int, error) {
	gc, _ := geometryColumn(table)
	cols, _ := store.Columns(table)
	log := zap.L().With(zap.String("table", table))

	var feats []feature
	for k, row := range rows {
		s, _ := row[gc.Name].(string)
		if s == "" {
			continue
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			return 0, eris.Wrapf(err, "export: %s row %d", table, k)
		}
		shape, typ, ok := toShape(g)
		if !ok {
			log.Warn("export: unsupported geometry", zap.Int("row", k), zap.String("type", fmt.Sprintf("%T", g)))
			continue
		}
		feats = append(feats, feature{row: row, shape: shape, typ: typ})
	}
	if len(feats) == 0 {
		return 0, nil
	}

	typ := feats[0].typ
	w, err := shp.Create(path, typ)
	if err != nil {
		return 0, eris.Wrapf(err, "export: create %s", path)
	}
	defer w.Close()

	var attrs []store.Column
	for _, c := range cols {
		if !c.Geometry {
			attrs = append(attrs, c)
		}
	}
	if err := w.SetFields(dbfFields(attrs)); err != nil {
		return 0, eris.Wrapf(err, "export: %s fields", table)
	}

	n := 0
	for _, f := range feats {
		if f.typ != typ {
			log.Warn("export: mixed shape types, feature skipped", zap.Int("want", int(typ)), zap.Int("got", int(f.typ)))
			continue
		}
		idx := int(w.Write(f.shape))
		for k, c := range attrs {
			v := attrValue(f.row[c.Name])
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(idx, k, v); err != nil {
				return n, eris.Wrapf(err, "export: %s.%s", table, c.Name)
			}
		}
		n++
	}
	log.Debug("export: shapefile written", zap.String("path", path), zap.Int("features", n))
	return n, nil
}

func toShape(g geom.T) (shp.Shape, shp.ShapeType, bool) {
	switch t := g.(type) {
	case *geom.Point:
		return &shp.Point{X: t.X(), Y: t.Y()}, shp.POINT, true
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{points(t.Coords())}), shp.POLYLINE, true
	case *geom.Polygon:
		parts := make([][]shp.Point, t.NumLinearRings())
		for k := range parts {
			parts[k] = points(t.LinearRing(k).Coords())
		}
		pg := shp.Polygon(*shp.NewPolyLine(parts))
		return &pg, shp.POLYGON, true
	}
	return nil, 0, false
}

func points(coords []geom.Coord) []shp.Point {
	out := make([]shp.Point, len(coords))
	for k, c := range coords {
		out[k] = shp.Point{X: c.X(), Y: c.Y()}
	}
	return out
}

// dbfFields maps columns onto dBase fields. Names are cut to ten characters
// and made unique with a numeric suffix.
func dbfFields(cols []store.Column) []shp.Field {
	seen := map[string]bool{}
	out := make([]shp.Field, len(cols))
	for k, c := range cols {
		name := fieldName(c.Name, seen)
		switch c.Type {
		case store.Integer:
			out[k] = shp.NumberField(name, 18)
		case store.Real:
			out[k] = shp.FloatField(name, 24, 6)
		default:
			out[k] = shp.StringField(name, maxString)
		}
	}
	return out
}

func fieldName(name string, seen map[string]bool) string {
	if len(name) > maxFieldName {
		name = name[:maxFieldName]
	}
	base := name
	for i := 1; seen[name]; i++ {
		suffix := strconv.Itoa(i)
		name = base[:min(len(base), maxFieldName-len(suffix))] + suffix
	}
	seen[name] = true
	return name
}

// attrValue converts a stored value to a type the dBase writer accepts.
func attrValue(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		return x
	case string:
		if len(x) > maxString {
			return x[:maxString]
		}
		return x
	}
	return nil
}
