// Package grid models the square computational grid: cell lookup by point,
// centroids, elevations, neighbours and spatial indexing.
package grid

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// latticeTolerance is the fraction of a cell a centroid may sit off the
// regular lattice before the grid is rejected.
const latticeTolerance = 1e-6

// Cell is one square tile of the grid.
type Cell struct {
	ID        int64   `json:"id" yaml:"id"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
}

// Centroid returns the cell centre.
func (c Cell) Centroid() geometry.Point { return geometry.Pt(c.X, c.Y) }

// Index is a (column, row) lattice position. Rows increase northwards.
type Index struct {
	Col, Row int
}

// Grid is an immutable square tiling with uniform cell size.
type Grid struct {
	cellSize float64
	x0, y0   float64
	cols     int
	rows     int
	cells    []Cell
	byID     map[int64]int
	byIndex  map[Index]int
}

// New builds a grid from its cells. Centroids must lie on a regular lattice of
// spacing cellSize, and ids and centroids must be unique.
func New(cellSize float64, cells []Cell) (*Grid, error) {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return nil, model.NewPrecondition(model.KindEmptyGrid, 0, "cell size must be positive, got %v", cellSize)
	}
	if len(cells) == 0 {
		return nil, model.NewPrecondition(model.KindEmptyGrid, 0, "grid has no cells")
	}

	g := &Grid{
		cellSize: cellSize,
		x0:       math.Inf(1),
		y0:       math.Inf(1),
		cells:    make([]Cell, len(cells)),
		byID:     make(map[int64]int, len(cells)),
		byIndex:  make(map[Index]int, len(cells)),
	}
	copy(g.cells, cells)
	sort.Slice(g.cells, func(i, j int) bool { return g.cells[i].ID < g.cells[j].ID })

	for _, c := range g.cells {
		g.x0 = math.Min(g.x0, c.X)
		g.y0 = math.Min(g.y0, c.Y)
	}

	for i, c := range g.cells {
		if c.ID <= 0 {
			return nil, eris.Errorf("grid: cell id %d is not positive", c.ID)
		}
		if _, dup := g.byID[c.ID]; dup {
			return nil, eris.Errorf("grid: duplicate cell id %d", c.ID)
		}
		fc := (c.X - g.x0) / cellSize
		fr := (c.Y - g.y0) / cellSize
		idx := Index{int(math.Round(fc)), int(math.Round(fr))}
		if math.Abs(fc-float64(idx.Col)) > latticeTolerance || math.Abs(fr-float64(idx.Row)) > latticeTolerance {
			return nil, eris.Errorf("grid: cell %d centroid (%v, %v) is off the %v lattice", c.ID, c.X, c.Y, cellSize)
		}
		if other, dup := g.byIndex[idx]; dup {
			return nil, eris.Errorf("grid: cells %d and %d share a centroid", g.cells[other].ID, c.ID)
		}
		g.byID[c.ID] = i
		g.byIndex[idx] = i
		g.cols = max(g.cols, idx.Col+1)
		g.rows = max(g.rows, idx.Row+1)
	}
	return g, nil
}

// CellSize returns the side length of every cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Cells returns the cells ordered by id. The slice must not be modified.
func (g *Grid) Cells() []Cell { return g.cells }

// Dims returns the number of lattice columns and rows spanned by the grid.
func (g *Grid) Dims() (cols, rows int) { return g.cols, g.rows }

// Offset returns the origin offset that maps coordinates to lattice indices
// with round((x+ox)/cellSize).
func (g *Grid) Offset() (ox, oy float64) { return -g.x0, -g.y0 }

// IndexOf returns the lattice index of the point p.
func (g *Grid) IndexOf(p geometry.Point) Index {
	return Index{
		Col: int(math.Round((p.X - g.x0) / g.cellSize)),
		Row: int(math.Round((p.Y - g.y0) / g.cellSize)),
	}
}

// CentroidOf returns the coordinate of the lattice index, whether or not a cell
// exists there.
func (g *Grid) CentroidOf(idx Index) geometry.Point {
	return geometry.Pt(g.x0+float64(idx.Col)*g.cellSize, g.y0+float64(idx.Row)*g.cellSize)
}

// CellAtIndex returns the cell id at a lattice index.
func (g *Grid) CellAtIndex(idx Index) (int64, bool) {
	i, ok := g.byIndex[idx]
	if !ok {
		return 0, false
	}
	return g.cells[i].ID, true
}

// CellAt returns the unique cell containing p.
func (g *Grid) CellAt(p geometry.Point) (int64, bool) {
	return g.CellAtIndex(g.IndexOf(p))
}

// Cell returns the cell with the given id.
func (g *Grid) Cell(id int64) (Cell, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Cell{}, false
	}
	return g.cells[i], true
}

// Centroid returns the centre of the cell.
func (g *Grid) Centroid(id int64) (geometry.Point, bool) {
	c, ok := g.Cell(id)
	return c.Centroid(), ok
}

// Elevation returns the cell elevation.
func (g *Grid) Elevation(id int64) (float64, bool) {
	c, ok := g.Cell(id)
	return c.Elevation, ok
}

// CellIndex returns the lattice index of the cell.
func (g *Grid) CellIndex(id int64) (Index, bool) {
	c, ok := g.Cell(id)
	if !ok {
		return Index{}, false
	}
	return g.IndexOf(c.Centroid()), true
}

// AdjacentCell returns the neighbour of cell id in direction d, or false at the
// edge of the grid.
func (g *Grid) AdjacentCell(id int64, d model.Direction) (int64, bool) {
	if !d.Valid() {
		return 0, false
	}
	idx, ok := g.CellIndex(id)
	if !ok {
		return 0, false
	}
	dx, dy := d.Offset()
	return g.CellAtIndex(Index{idx.Col + dx, idx.Row + dy})
}

// DenseIndex returns a row-major position of the cell inside a cols*rows array.
func (g *Grid) DenseIndex(id int64) (int, bool) {
	idx, ok := g.CellIndex(id)
	if !ok {
		return 0, false
	}
	return idx.Row*g.cols + idx.Col, true
}

// CellBox returns the square covered by the cell.
func (g *Grid) CellBox(id int64) (geometry.BBox, bool) {
	c, ok := g.Cell(id)
	if !ok {
		return geometry.BBox{}, false
	}
	h := g.cellSize / 2
	return geometry.BBox{MinX: c.X - h, MinY: c.Y - h, MaxX: c.X + h, MaxY: c.Y + h}, true
}

// CellsInBox returns the ids of the cells whose closed squares touch b,
// ordered by id. A box lying on a shared edge selects the cells on both sides.
func (g *Grid) CellsInBox(b geometry.BBox) []int64 {
	const tol = 1e-9
	span := func(lo, hi, origin float64) (int, int) {
		return int(math.Ceil((lo-origin)/g.cellSize - 0.5 - tol)),
			int(math.Floor((hi-origin)/g.cellSize + 0.5 + tol))
	}
	c0, c1 := span(b.MinX, b.MaxX, g.x0)
	r0, r1 := span(b.MinY, b.MaxY, g.y0)
	var ids []int64
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			if id, ok := g.CellAtIndex(Index{col, row}); ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Adjacent reports whether two cells are 8-connected neighbours.
func (g *Grid) Adjacent(a, b int64) bool {
	ia, ok1 := g.CellIndex(a)
	ib, ok2 := g.CellIndex(b)
	if !ok1 || !ok2 || a == b {
		return false
	}
	return abs(ia.Col-ib.Col) <= 1 && abs(ia.Row-ib.Row) <= 1
}

// Polyline returns the polyline through the centroids of ids, in order.
func (g *Grid) Polyline(ids []int64) (geometry.Polyline, error) {
	out := make(geometry.Polyline, 0, len(ids))
	for _, id := range ids {
		p, ok := g.Centroid(id)
		if !ok {
			return nil, eris.Errorf("grid: unknown cell %d", id)
		}
		out = append(out, p)
	}
	return out, nil
}

// BuildLineString emits the line string through the centroids of ids in order.
func (g *Grid) BuildLineString(ids []int64) (*geom.LineString, error) {
	pl, err := g.Polyline(ids)
	if err != nil {
		return nil, err
	}
	if len(pl) < 2 {
		return nil, eris.Errorf("grid: line string needs at least 2 cells, got %d", len(pl))
	}
	return pl.LineString(), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
