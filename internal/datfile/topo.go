package datfile

import (
	"io"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/grid"
)

// OpenTopo reads a TOPO.DAT file. See ReadTopo.
func OpenTopo(path string, cellSize float64) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "datfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadTopo(f, cellSize)
}

// ReadTopo builds a grid from TOPO.DAT: one "x y elevation" line per cell,
// the cell id being the 1-based line number. When cellSize is not positive
// it is taken as the smallest centroid spacing.
func ReadTopo(r io.Reader, cellSize float64) (*grid.Grid, error) {
	s := newScanner(r, "TOPO.DAT")
	var cells []grid.Cell
	for {
		f, ok := s.next()
		if !ok {
			break
		}
		if len(f) != 3 {
			return nil, s.errorf("expected x y elevation")
		}
		v, err := s.floats(f)
		if err != nil {
			return nil, err
		}
		cells = append(cells, grid.Cell{ID: int64(len(cells) + 1), X: v[0], Y: v[1], Elevation: v[2]})
	}
	if err := s.err(); err != nil {
		return nil, err
	}
	if cellSize <= 0 {
		cellSize = spacing(cells)
	}
	return grid.New(cellSize, cells)
}

// spacing returns the smallest positive gap between distinct x or y
// centroid coordinates.
func spacing(cells []grid.Cell) float64 {
	best := math.Inf(1)
	for _, axis := range []func(grid.Cell) float64{
		func(c grid.Cell) float64 { return c.X },
		func(c grid.Cell) float64 { return c.Y },
	} {
		vals := make([]float64, len(cells))
		for k, c := range cells {
			vals[k] = axis(c)
		}
		sort.Float64s(vals)
		for k := 1; k < len(vals); k++ {
			if d := vals[k] - vals[k-1]; d > 1e-9 && d < best {
				best = d
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// WriteTopo serializes the grid cells in id order.
func WriteTopo(w io.Writer, g *grid.Grid) error {
	cells := append([]grid.Cell(nil), g.Cells()...)
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	lw := newLineWriter(w)
	for _, c := range cells {
		lw.put(F(c.X), F(c.Y), F(c.Elevation))
	}
	return lw.flush("TOPO.DAT")
}
