package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

const projectYAML = `
grid:
  cellsize: 10
  cells:
    - {id: 1, x: 5, y: 5, elevation: 100}
    - {id: 2, x: 5, y: 15, elevation: 101}
    - {id: 3, x: 15, y: 5, elevation: 102}
    - {id: 4, x: 15, y: 15, elevation: 103}
left_banks:
  - fid: 1
    name: main
    geom: LINESTRING (5 15, 15 15)
    depinitial: 0.5
    roughadj: 0.1
    rank: 1
    wse: {istart: 2, wselstart: 101.5, iend: 4, wselend: 100}
right_banks:
  - fid: 7
    geom: LINESTRING (5 5, 15 5)
cross_sections:
  - fid: 1
    name: XS-1
    type: R
    manning: 0.035
    params: {bankell: 101, bankelr: 100, fcw: 8, fcd: 2}
    geom: LINESTRING (5 18, 5 2)
  - fid: 2
    name: XS-2
    type: n
    stations: [{x: 0, y: 100}, {x: 4, y: 97}, {x: 9, y: 100}]
    geom: LINESTRING (15 18, 15 2)
no_exchange: [3]
levees:
  - fid: 11
    geom: LINESTRING (0 10, 20 10)
    elev: 105
    fail_depth: 1.5
    failure: {failtime: 2, levbase: 99, failwidthmax: 40, failrate: 0.5, failwidrate: 1}
levee_polygons:
  - fid: 21
    geom: POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))
    correction: -0.5
floodplain_xs:
  - fid: 31
    name: FP-1
    geom: LINESTRING (2 5, 18 5)
    iflo: 2
`

func TestReadYAML(t *testing.T) {
	p, err := ReadYAML(strings.NewReader(projectYAML), "")
	require.NoError(t, err)

	assert.Equal(t, 4, p.Grid.Len())
	assert.Equal(t, 10.0, p.Grid.CellSize())

	require.Len(t, p.LeftBanks, 1)
	lb := p.LeftBanks[0]
	assert.Equal(t, "main", lb.Name)
	assert.Equal(t, geometry.Polyline{{X: 5, Y: 15}, {X: 15, Y: 15}}, lb.Geometry)
	require.NotNil(t, lb.WSE)
	assert.Equal(t, int64(4), lb.WSE.IEnd)

	require.Len(t, p.RightBanks, 1)
	assert.Equal(t, int64(7), p.RightBanks[0].FID)

	require.Equal(t, 2, p.CrossSections.Len())
	rect, ok := p.CrossSections.Get(1)
	require.True(t, ok)
	assert.Equal(t, []float64{101, 100, 8, 2}, rect.ParametricValues())
	assert.Equal(t, 0.035, rect.Manning())
	nat, ok := p.CrossSections.Get(2)
	require.True(t, ok)
	assert.Equal(t, xsec.Natural, nat.Type())
	assert.Len(t, nat.Stations(), 3)

	assert.Equal(t, []int64{3}, p.NoExchange)

	require.Len(t, p.LeveeLines, 1)
	l := p.LeveeLines[0]
	require.NotNil(t, l.Elev)
	assert.Equal(t, 105.0, *l.Elev)
	assert.Nil(t, l.FailElev)
	assert.Equal(t, 40.0, l.Failure.FailWidthMax)

	require.Len(t, p.LeveePolygons, 1)
	assert.Len(t, p.LeveePolygons[0].Ring, 5)
	assert.Equal(t, -0.5, *p.LeveePolygons[0].Correction)

	require.Len(t, p.Floodplain, 1)
	assert.Equal(t, model.East, p.Floodplain[0].Iflo)

	in := p.ChannelInput(0.04)
	assert.Equal(t, 0.04, in.DefaultManning)
	assert.Equal(t, p.Grid, p.LeveeInput().Grid)
	assert.Len(t, p.FloodplainInput().Lines, 1)
}

func TestReadYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"bad yaml", "grid: [", "decode yaml"},
		{"bad wkt", "left_banks:\n  - fid: 3\n    geom: LINESTRING (1 2,\n", "left bank 3"},
		{"bad type", "cross_sections:\n  - fid: 4\n    type: Q\n    geom: LINESTRING (0 0, 1 1)\n", "unknown cross-section type"},
		{"unknown param", "cross_sections:\n  - fid: 4\n    params: {zl: 1}\n    geom: LINESTRING (0 0, 1 1)\n", "no parameter"},
		{"duplicate fid", "cross_sections:\n  - fid: 4\n    geom: LINESTRING (0 0, 1 1)\n  - fid: 4\n    geom: LINESTRING (0 0, 1 1)\n", "duplicate"},
		{"bad cell size", "grid:\n  cells: [{id: 1, x: 5, y: 5}]\n", "grid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadYAML(strings.NewReader(tt.doc), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadYAMLTopo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TOPO.DAT"), []byte("5 5 100\n5 15 101\n15 5 99\n15 15 98\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.yaml"), []byte("grid:\n  topo: TOPO.DAT\n"), 0o644))

	p, err := LoadYAML(filepath.Join(dir, "project.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Grid.Len())
	elev, ok := p.Grid.Elevation(2)
	require.True(t, ok)
	assert.Equal(t, 101.0, elev)
	assert.Zero(t, p.CrossSections.Len())

	_, err = LoadYAML(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

type feature struct {
	shape shp.Shape
	attrs []any
}

func writeLayer(t *testing.T, path string, typ shp.ShapeType, fields []shp.Field, features []feature) {
	t.Helper()
	w, err := shp.Create(path, typ)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(fields))
	for _, f := range features {
		row := w.Write(f.shape)
		for i, v := range f.attrs {
			require.NoError(t, w.WriteAttribute(int(row), i, v))
		}
	}
	w.Close()
}

func square(x, y, size float64) *shp.Polygon {
	pl := shp.NewPolyLine([][]shp.Point{{{X: x, Y: y}, {X: x, Y: y + size}, {X: x + size, Y: y + size}, {X: x + size, Y: y}, {X: x, Y: y}}})
	p := shp.Polygon(*pl)
	return &p
}

func line(pts ...shp.Point) *shp.PolyLine {
	return shp.NewPolyLine([][]shp.Point{pts})
}

func TestLoadShapefiles(t *testing.T) {
	dir := t.TempDir()
	gridFields := []shp.Field{shp.NumberField("fid", 10), shp.FloatField("elevation", 12, 3)}
	writeLayer(t, filepath.Join(dir, LayerGrid), shp.POLYGON, gridFields, []feature{
		{square(0, 0, 10), []any{1, 100.0}},
		{square(0, 10, 10), []any{2, 101.0}},
		{square(10, 0, 10), []any{3, 102.0}},
		{square(10, 10, 10), []any{4, 103.5}},
	})
	writeLayer(t, filepath.Join(dir, LayerLeftBanks), shp.POLYLINE,
		[]shp.Field{shp.NumberField("fid", 10), shp.StringField("name", 20), shp.FloatField("depinitial", 10, 3), shp.NumberField("istart", 10), shp.FloatField("wselstart", 10, 3)},
		[]feature{{line(shp.Point{X: 5, Y: 15}, shp.Point{X: 15, Y: 15}), []any{1, "main", 0.5, 2, 101.5}}},
	)
	writeLayer(t, filepath.Join(dir, LayerCrossSections), shp.POLYLINE,
		[]shp.Field{shp.NumberField("fid", 10), shp.StringField("type", 1), shp.FloatField("n", 8, 4), shp.FloatField("bankell", 10, 3), shp.StringField("stations", 100)},
		[]feature{
			{line(shp.Point{X: 5, Y: 18}, shp.Point{X: 5, Y: 2}), []any{1, "R", 0.035, 101.0, ""}},
			{line(shp.Point{X: 15, Y: 18}, shp.Point{X: 15, Y: 2}), []any{2, "N", 0.0, 0.0, "0,100; 4,97; 9,100"}},
		},
	)
	writeLayer(t, filepath.Join(dir, LayerNoExchange), shp.POINT,
		[]shp.Field{shp.NumberField("fid", 10)},
		[]feature{{&shp.Point{X: 14, Y: 6}, []any{1}}, {&shp.Point{X: 50, Y: 50}, []any{2}}},
	)
	writeLayer(t, filepath.Join(dir, LayerLeveeLines), shp.POLYLINE,
		[]shp.Field{shp.NumberField("fid", 10), shp.FloatField("elev", 10, 2), shp.FloatField("failwidmax", 10, 2)},
		[]feature{{line(shp.Point{X: 0, Y: 10}, shp.Point{X: 20, Y: 10}), []any{11, 105.25, 40.0}}},
	)
	writeLayer(t, filepath.Join(dir, LayerFloodplain), shp.POLYLINE,
		[]shp.Field{shp.NumberField("fid", 10), shp.NumberField("iflo", 2)},
		[]feature{{line(shp.Point{X: 2, Y: 5}, shp.Point{X: 18, Y: 5}), []any{31, 6}}},
	)

	p, err := LoadShapefiles(context.Background(), dir, 0)
	require.NoError(t, err)

	assert.Equal(t, 10.0, p.Grid.CellSize())
	id, ok := p.Grid.CellAt(geometry.Pt(15, 15))
	require.True(t, ok)
	assert.Equal(t, int64(4), id)

	require.Len(t, p.LeftBanks, 1)
	lb := p.LeftBanks[0]
	assert.Equal(t, "main", lb.Name)
	assert.Equal(t, 0.5, lb.DepInitial)
	require.NotNil(t, lb.WSE)
	assert.Equal(t, int64(2), lb.WSE.IStart)
	assert.Equal(t, 101.5, lb.WSE.WSELStart)

	assert.Empty(t, p.RightBanks)

	rect, ok := p.CrossSections.Get(1)
	require.True(t, ok)
	v, _ := rect.Param("bankell")
	assert.Equal(t, 101.0, v)
	assert.Equal(t, 0.035, rect.Manning())
	nat, ok := p.CrossSections.Get(2)
	require.True(t, ok)
	assert.Equal(t, []xsec.Station{{X: 0, Y: 100}, {X: 4, Y: 97}, {X: 9, Y: 100}}, nat.Stations())

	assert.Equal(t, []int64{3}, p.NoExchange)

	require.Len(t, p.LeveeLines, 1)
	assert.Equal(t, 105.25, *p.LeveeLines[0].Elev)
	assert.Nil(t, p.LeveeLines[0].Correction)
	assert.Equal(t, 40.0, p.LeveeLines[0].Failure.FailWidthMax)

	require.Len(t, p.Floodplain, 1)
	assert.Equal(t, model.SouthEast, p.Floodplain[0].Iflo)
}

func TestLoadShapefilesMissingGrid(t *testing.T) {
	_, err := LoadShapefiles(context.Background(), t.TempDir(), 10)
	require.Error(t, err)
	assert.True(t, model.IsPrecondition(err))
}

func TestParseStations(t *testing.T) {
	got, err := parseStations("0,1;2.5,3;")
	require.NoError(t, err)
	assert.Equal(t, []xsec.Station{{X: 0, Y: 1}, {X: 2.5, Y: 3}}, got)

	_, err = parseStations("1;2")
	assert.Error(t, err)
	_, err = parseStations("a,2")
	assert.Error(t, err)
}
