package rasterline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
)

func TestBresenham(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		want           [][2]int
	}{
		{"single cell", 2, 2, 2, 2, [][2]int{{2, 2}}},
		{"horizontal", 0, 0, 3, 0, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}}},
		{"vertical down", 0, 2, 0, 0, [][2]int{{0, 2}, {0, 1}, {0, 0}}},
		{"diagonal", 0, 0, 2, 2, [][2]int{{0, 0}, {1, 1}, {2, 2}}},
		{"shallow", 0, 0, 4, 1, [][2]int{{0, 0}, {1, 0}, {2, 1}, {3, 1}, {4, 1}}},
		{"steep reversed", 1, 4, 0, 0, [][2]int{{1, 4}, {1, 3}, {0, 2}, {0, 1}, {0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bresenham(tt.x0, tt.y0, tt.x1, tt.y1))
		})
	}
}

func TestBresenhamProperties(t *testing.T) {
	ends := [][4]int{{0, 0, 7, 3}, {-3, 5, 4, -9}, {10, 10, -2, 11}, {0, 0, 0, -6}}
	for _, e := range ends {
		run := Bresenham(e[0], e[1], e[2], e[3])
		dx, dy := absInt(e[2]-e[0]), absInt(e[3]-e[1])
		assert.Len(t, run, max(dx, dy)+1)
		assert.Equal(t, [2]int{e[0], e[1]}, run[0])
		assert.Equal(t, [2]int{e[2], e[3]}, run[len(run)-1])
		for i := 1; i < len(run); i++ {
			assert.LessOrEqual(t, absInt(run[i][0]-run[i-1][0]), 1)
			assert.LessOrEqual(t, absInt(run[i][1]-run[i-1][1]), 1)
			assert.NotEqual(t, run[i], run[i-1])
		}
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	l := Lattice{OX: -5, OY: -5, CellSize: 10}
	// centroids of index (0,0) and (3,1)
	p1, p2 := l.Centroid(0, 0), l.Centroid(3, 1)
	assert.Equal(t, geometry.Pt(5, 5), p1)

	got := l.Segment(p1, p2)
	want := geometry.Polyline{}
	for _, ij := range Bresenham(0, 0, 3, 1) {
		want = append(want, l.Centroid(ij[0], ij[1]))
	}
	assert.Equal(t, want, got)
}

func TestPolylineConcatenation(t *testing.T) {
	l := Lattice{CellSize: 10}
	pl := geometry.Polyline{geometry.Pt(0, 0), geometry.Pt(20, 0), geometry.Pt(20, 20)}
	got := l.Polyline(pl)
	assert.Equal(t, geometry.Polyline{
		geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(20, 0),
		geometry.Pt(20, 10), geometry.Pt(20, 20),
	}, got)
}

func TestCellsOnGrid(t *testing.T) {
	g, err := grid.NewRegular(5, 5, 10, 5, 5, nil)
	require.NoError(t, err)

	ids, err := Cells(g, geometry.Polyline{geometry.Pt(6, 44), geometry.Pt(7, 3)})
	require.NoError(t, err)
	// column 0 from row 4 down to row 0
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids)
	for i := 1; i < len(ids); i++ {
		assert.True(t, g.Adjacent(ids[i-1], ids[i]))
	}

	_, err = Cells(g, geometry.Polyline{geometry.Pt(6, 44), geometry.Pt(6, 90)})
	require.Error(t, err)
}
