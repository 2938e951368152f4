package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/datfile"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/pipeline"
	"github.com/sells-group/flo2d-schematizer/internal/project"
	"github.com/sells-group/flo2d-schematizer/internal/store"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

func f64(v float64) *float64 { return &v }

func fixture(t *testing.T) *project.Project {
	t.Helper()
	g, err := grid.NewRegular(5, 7, 10, 5, 5, func(col, row int) float64 { return float64(100 + row) })
	require.NoError(t, err)

	up, err := xsec.New(1, "UP", xsec.Rectangular, geometry.Polyline{{X: 12, Y: 55}, {X: 38, Y: 55}})
	require.NoError(t, err)
	down, err := xsec.New(2, "DOWN", xsec.Natural, geometry.Polyline{{X: 12, Y: 15}, {X: 38, Y: 15}})
	require.NoError(t, err)
	_, err = down.SetNaturalStations([]xsec.Station{{X: 0, Y: 101}, {X: 10, Y: 98}, {X: 26, Y: 101}})
	require.NoError(t, err)
	cat, err := xsec.NewCatalog(up, down)
	require.NoError(t, err)

	return &project.Project{
		Grid:          g,
		LeftBanks:     []channel.LeftBank{{FID: 1, Name: "main", Geometry: geometry.Polyline{{X: 14, Y: 55}, {X: 14, Y: 15}}}},
		CrossSections: cat,
		LeveeLines:    []levee.Line{{FID: 1, Geometry: geometry.Polyline{{X: 0, Y: 9}, {X: 50, Y: 9}}, Elev: f64(1000)}},
		Floodplain:    []fpxs.Line{{FID: 1, Name: "FP", Geometry: geometry.Polyline{{X: 15, Y: 5}, {X: 15, Y: 45}}, Iflo: model.West}},
	}
}

func run(t *testing.T, proj *project.Project, stages ...pipeline.Stage) (store.Store, *pipeline.Outcome) {
	t.Helper()
	st := store.NewMemory()
	out, err := pipeline.New(st, pipeline.Options{DefaultManning: 0.04}).Run(context.Background(), proj, stages...)
	require.NoError(t, err)
	return st, out
}

func TestWriteDAT(t *testing.T) {
	proj := fixture(t)
	_, out := run(t, proj)
	dir := filepath.Join(t.TempDir(), "dat")

	files, err := WriteDAT(dir, proj, out, DATOptions{NXPRT: 1, RaiseLev: 0.5, Topo: true})
	require.NoError(t, err)
	assert.Equal(t, []string{FileChan, FileXSec, FileChanBank, FileLevee, FileFPXSec, FileTopo}, files)

	open := func(name string) *os.File {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		t.Cleanup(func() { f.Close() }) //nolint:errcheck
		return f
	}

	ch, err := datfile.ParseChan(open(FileChan))
	require.NoError(t, err)
	require.Len(t, ch.Segments, 1)
	assert.Len(t, ch.Segments[0].Elements, len(out.Channels[0].XS))

	naturals, err := datfile.ParseXSec(open(FileXSec))
	require.NoError(t, err)
	require.NotEmpty(t, naturals)
	assert.Equal(t, "DOWN", naturals[len(naturals)-1].Name)

	banks, err := datfile.ParseChanBank(open(FileChanBank))
	require.NoError(t, err)
	assert.Len(t, banks, len(out.Channels[0].XS))

	lv, err := datfile.ParseLevee(open(FileLevee))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, lv.RaiseLev, 1e-9)
	assert.Zero(t, lv.ILevFail)
	assert.NotEmpty(t, lv.Cells)

	fp, err := datfile.ParseFPXSec(open(FileFPXSec))
	require.NoError(t, err)
	assert.Equal(t, 1, fp.NXPRT)
	require.Len(t, fp.Sections, 1)
	assert.Equal(t, model.West, fp.Sections[0].Iflo)

	g, err := datfile.OpenTopo(filepath.Join(dir, FileTopo), 10)
	require.NoError(t, err)
	assert.Equal(t, proj.Grid.Len(), g.Len())
}

func TestWriteDATSelectedStage(t *testing.T) {
	proj := fixture(t)
	_, out := run(t, proj, pipeline.StageFloodplain)

	files, err := WriteDAT(t.TempDir(), proj, out, DATOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{FileFPXSec}, files)
}

func TestWriteDATErrors(t *testing.T) {
	_, err := WriteDAT(t.TempDir(), nil, nil, DATOptions{})
	assert.Error(t, err)

	proj := fixture(t)
	_, out := run(t, proj, pipeline.StageChannel)
	proj.CrossSections = nil
	_, err = WriteDAT(t.TempDir(), proj, out, DATOptions{})
	assert.Error(t, err)
}

func TestGeometryTables(t *testing.T) {
	assert.Equal(t, []string{
		store.TableChan, store.TableChanElems, store.TableFPXS, store.TableLevees, store.TableRightBank, store.TableUserXS,
	}, GeometryTables())
}

func TestShapefiles(t *testing.T) {
	st, out := run(t, fixture(t))
	dir := t.TempDir()

	counts, err := Shapefiles(context.Background(), st, dir, store.Tables())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		store.TableChan:      1,
		store.TableChanElems: len(out.Channels[0].XS),
		store.TableUserXS:    2,
		store.TableLevees:    len(out.Levees.Records),
		store.TableFPXS:      1,
	}, counts)

	_, err = os.Stat(filepath.Join(dir, store.TableRightBank+".shp"))
	assert.True(t, os.IsNotExist(err))

	r, err := shp.Open(filepath.Join(dir, store.TableChanElems+".shp"))
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	assert.Equal(t, shp.POLYLINE, r.GeometryType)
	var names []string
	for _, f := range r.Fields() {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{
		"id", "segment_id", "order_in_s", "user_xs_fi", "interpolat", "fcn", "xlen", "lbankgrid", "rbankgrid",
	}, names)

	require.True(t, r.Next())
	_, shape := r.Shape()
	line, ok := shape.(*shp.PolyLine)
	require.True(t, ok)
	assert.Equal(t, int32(1), line.NumParts)
	assert.Equal(t, "1", strings.Trim(r.Attribute(2), " \x00"))
	assert.Equal(t, "0.040000", strings.Trim(r.Attribute(5), " \x00"))
}

func TestShapefilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Shapefiles(ctx, store.NewMemory(), t.TempDir(), store.Tables())
	assert.ErrorIs(t, err, model.ErrCancelled)
}

func TestFieldName(t *testing.T) {
	seen := map[string]bool{}
	assert.Equal(t, "failwidthm", fieldName("failwidthmax", seen))
	assert.Equal(t, "failwidth1", fieldName("failwidthmin", seen))
	assert.Equal(t, "failwidth2", fieldName("failwidthmid", seen))
	assert.Equal(t, "cell_id", fieldName("cell_id", seen))
}

func TestAttrValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", int64(7), 7},
		{"float", 1.5, 1.5},
		{"string", "abc", "abc"},
		{"long string", strings.Repeat("x", 300), strings.Repeat("x", maxString)},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attrValue(tt.in))
		})
	}
}
