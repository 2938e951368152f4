package elevation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/dem"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// 4x4 grid of 10 ft cells; elevation is 10*col + row.
func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.NewRegular(4, 4, 10, 5, 5, func(col, row int) float64 {
		return float64(10*col + row)
	})
	require.NoError(t, err)
	return g
}

// 2x2 raster over the south-west quarter of the grid, one no-data cell.
func testRaster() *dem.Raster {
	return &dem.Raster{
		NCols: 2, NRows: 2, CellSize: 10, NoData: dem.DefaultNoData,
		Data: [][]float64{{100, -9999}, {200, 300}},
	}
}

type fixed map[geometry.Point]float64

func (f fixed) Sample(p geometry.Point) (float64, bool) {
	v, ok := f[p]
	return v, ok
}

func TestGridSampler(t *testing.T) {
	s := GridSampler{Grid: testGrid(t)}
	v, ok := s.Sample(geometry.Pt(16, 27))
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	_, ok = s.Sample(geometry.Pt(-5, 5))
	assert.False(t, ok)
}

func TestRasterSampler(t *testing.T) {
	near, err := NewRasterSampler(testRaster(), Nearest, "", "")
	require.NoError(t, err)
	v, ok := near.Sample(geometry.Pt(2, 2))
	require.True(t, ok)
	assert.Equal(t, 200.0, v)

	_, ok = near.Sample(geometry.Pt(15, 15))
	assert.False(t, ok, "no-data cell")

	bil, err := NewRasterSampler(testRaster(), Bilinear, "", "")
	require.NoError(t, err)
	v, ok = bil.Sample(geometry.Pt(10, 10))
	require.True(t, ok)
	assert.Equal(t, 300.0, v, "next to no-data falls back to the nearest cell")

	_, err = NewRasterSampler(nil, Bilinear, "", "")
	assert.Error(t, err)
}

func TestRasterSamplerReprojects(t *testing.T) {
	r := &dem.Raster{
		NCols: 3, NRows: 3, CellSize: 1, NoData: dem.DefaultNoData,
		Data: [][]float64{{7, 7, 7}, {7, 7, 7}, {7, 7, 7}},
	}
	s, err := NewRasterSampler(r, Nearest, "+proj=longlat +ellps=WGS84", "+proj=longlat +datum=WGS84")
	require.NoError(t, err)
	require.NotNil(t, s.transform)

	v, ok := s.Sample(geometry.Pt(1.5, 1.5))
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestFallback(t *testing.T) {
	rs, err := NewRasterSampler(testRaster(), Nearest, "", "")
	require.NoError(t, err)
	s := Fallback{Primary: rs, Secondary: GridSampler{Grid: testGrid(t)}}

	v, ok := s.Sample(geometry.Pt(2, 2))
	require.True(t, ok)
	assert.Equal(t, 200.0, v)

	// outside the raster, inside the grid
	v, ok = s.Sample(geometry.Pt(36, 36))
	require.True(t, ok)
	assert.Equal(t, 33.0, v)

	_, ok = Fallback{Primary: rs}.Sample(geometry.Pt(36, 36))
	assert.False(t, ok)
}

func TestParseInterpolation(t *testing.T) {
	tests := []struct {
		in   string
		want Interpolation
		err  bool
	}{
		{"", Bilinear, false},
		{"Nearest", Nearest, false},
		{" bilinear ", Bilinear, false},
		{"cubic", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterpolation(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveLine(t *testing.T) {
	// cross-section drawn east to west across two north-south banks
	xs := geometry.Polyline{{X: 50, Y: 10}, {X: 0, Y: 10}}
	left := geometry.Polyline{{X: 40, Y: 0}, {X: 40, Y: 20}}
	right := geometry.Polyline{{X: 10, Y: 0}, {X: 10, Y: 20}}

	tests := []struct {
		name  string
		right geometry.Polyline
		want  geometry.Polyline
	}{
		{"both banks", right, geometry.Polyline{{X: 40, Y: 10}, {X: 10, Y: 10}}},
		{"left bank only", nil, geometry.Polyline{{X: 40, Y: 10}, {X: 0, Y: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectiveLine(xs, left, tt.right)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i].X, got[i].X, 1e-9)
				assert.InDelta(t, tt.want[i].Y, got[i].Y, 1e-9)
			}
		})
	}

	// banks digitized so the right one is hit first along the line
	got, err := EffectiveLine(xs.Reverse(), left, right)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got.Start().X, 1e-9)
	assert.InDelta(t, 10.0, got.End().X, 1e-9)

	_, err = EffectiveLine(xs, geometry.Polyline{{X: 60, Y: 0}, {X: 60, Y: 20}}, nil)
	assert.Error(t, err)
	_, err = EffectiveLine(xs, left, geometry.Polyline{{X: 60, Y: 0}, {X: 60, Y: 20}})
	assert.Error(t, err)
}

func TestSampleProfile(t *testing.T) {
	s := GridSampler{Grid: testGrid(t)}
	line := geometry.Polyline{{X: 5, Y: 5}, {X: 32, Y: 5}}

	stations, missing := SampleProfile(s, line, 10)
	assert.Zero(t, missing)
	assert.Equal(t, []xsec.Station{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 27, Y: 30}}, stations)

	// runs off the grid to the west
	line = geometry.Polyline{{X: 5, Y: 5}, {X: -15, Y: 5}}
	stations, missing = SampleProfile(s, line, 10)
	assert.Equal(t, 2, missing)
	assert.Equal(t, []xsec.Station{{X: 0, Y: 0}}, stations)

	stations, _ = SampleProfile(s, geometry.Polyline{{X: 1, Y: 1}}, 10)
	assert.Nil(t, stations)
}

func TestSampleBankElevations(t *testing.T) {
	x, err := xsec.New(4, "XS-4", xsec.Rectangular, nil)
	require.NoError(t, err)
	s := fixed{geometry.Pt(0, 0): 101.5, geometry.Pt(30, 0): 99.25}

	l, r, err := SampleBankElevations(s, x, geometry.Polyline{{X: 0, Y: 0}, {X: 30, Y: 0}})
	require.NoError(t, err)
	assert.Equal(t, 101.5, l)
	assert.Equal(t, 99.25, r)
	v, _ := x.Param("bankell")
	assert.Equal(t, 101.5, v)
	v, _ = x.Param("bankelr")
	assert.Equal(t, 99.25, v)

	_, _, err = SampleBankElevations(s, x, geometry.Polyline{{X: 0, Y: 0}, {X: 40, Y: 0}})
	require.Error(t, err)
	var fe *model.FeatureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, model.KindSampleFailed, fe.Kind)
}

func TestEnrich(t *testing.T) {
	g := testGrid(t)
	rect, err := xsec.New(1, "R1", xsec.Rectangular, geometry.Polyline{{X: 35, Y: 15}, {X: 0, Y: 15}})
	require.NoError(t, err)
	nat, err := xsec.New(2, "N2", xsec.Natural, geometry.Polyline{{X: 35, Y: 25}, {X: 0, Y: 25}})
	require.NoError(t, err)
	stray, err := xsec.New(3, "R3", xsec.Rectangular, geometry.Polyline{{X: 35, Y: 38}, {X: 30, Y: 38}})
	require.NoError(t, err)
	cat, err := xsec.NewCatalog(rect, nat, stray)
	require.NoError(t, err)

	in := Input{
		Sampler:       GridSampler{Grid: g},
		CrossSections: cat,
		LeftBanks:     map[int64]geometry.Polyline{1: {{X: 25, Y: 0}, {X: 25, Y: 30}}},
		RightBanks:    map[int64]geometry.Polyline{1: {{X: 5, Y: 0}, {X: 5, Y: 30}}},
		Step:          10,
	}
	report, err := Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts["profiles"])
	assert.Equal(t, 1, report.Counts["bank_elevations"])
	assert.Zero(t, report.Skipped)

	v, _ := rect.Param("bankell")
	assert.Equal(t, 21.0, v)
	v, _ = rect.Param("bankelr")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, []xsec.Station{{X: 0, Y: 22}, {X: 10, Y: 12}, {X: 20, Y: 2}}, nat.Stations())

	// the stray section never touches a bank and stays at defaults
	v, _ = stray.Param("bankell")
	assert.Zero(t, v)
}

func TestEnrichCancelled(t *testing.T) {
	x, err := xsec.New(1, "R1", xsec.Rectangular, geometry.Polyline{{X: 0, Y: 0}, {X: 1, Y: 0}})
	require.NoError(t, err)
	cat, err := xsec.NewCatalog(x)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Enrich(ctx, Input{Sampler: fixed{}, CrossSections: cat})
	assert.True(t, model.IsCancelled(err))
}
