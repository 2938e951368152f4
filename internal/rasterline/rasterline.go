// Package rasterline maps polylines onto ordered, 8-connected runs of grid
// cell centroids using Bresenham's line algorithm on cell indices.
package rasterline

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
)

// Lattice describes how coordinates map to integer cell indices:
// index = round((x + OX) / CellSize).
type Lattice struct {
	OX, OY   float64
	CellSize float64
}

// LatticeOf returns the lattice of a grid.
func LatticeOf(g *grid.Grid) Lattice {
	ox, oy := g.Offset()
	return Lattice{OX: ox, OY: oy, CellSize: g.CellSize()}
}

// Index converts a coordinate to its cell index.
func (l Lattice) Index(p geometry.Point) (int, int) {
	return int(math.Round((p.X + l.OX) / l.CellSize)), int(math.Round((p.Y + l.OY) / l.CellSize))
}

// Centroid converts a cell index back to its centroid.
func (l Lattice) Centroid(i, j int) geometry.Point {
	return geometry.Pt(float64(i)*l.CellSize-l.OX, float64(j)*l.CellSize-l.OY)
}

// Bresenham returns the 8-connected cell indices on the line between
// (x0, y0) and (x1, y1), both ends included.
func Bresenham(x0, y0, x1, y1 int) [][2]int {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	out := make([][2]int, 0, max(dx, -dy)+1)
	e := dx + dy
	for {
		out = append(out, [2]int{x0, y0})
		if x0 == x1 && y0 == y1 {
			return out
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Segment rasterizes the straight line p1-p2 to cell centroids.
func (l Lattice) Segment(p1, p2 geometry.Point) geometry.Polyline {
	i0, j0 := l.Index(p1)
	i1, j1 := l.Index(p2)
	run := Bresenham(i0, j0, i1, j1)
	out := make(geometry.Polyline, len(run))
	for k, ij := range run {
		out[k] = l.Centroid(ij[0], ij[1])
	}
	return out
}

// Polyline rasterizes every segment of pl and concatenates the runs, dropping
// the first point of each subsequent run.
func (l Lattice) Polyline(pl geometry.Polyline) geometry.Polyline {
	if len(pl) == 0 {
		return nil
	}
	if len(pl) == 1 {
		i, j := l.Index(pl[0])
		return geometry.Polyline{l.Centroid(i, j)}
	}
	var out geometry.Polyline
	for k := 1; k < len(pl); k++ {
		run := l.Segment(pl[k-1], pl[k])
		if k > 1 {
			run = run[1:]
		}
		out = append(out, run...)
	}
	return out
}

// Cells rasterizes pl on g and returns the cell ids in order. Consecutive
// duplicates are collapsed. It fails when the line leaves the grid.
func Cells(g *grid.Grid, pl geometry.Polyline) ([]int64, error) {
	pts := LatticeOf(g).Polyline(pl)
	ids := make([]int64, 0, len(pts))
	for _, p := range pts {
		id, ok := g.CellAt(p)
		if !ok {
			return nil, eris.Errorf("rasterline: point (%.4f, %.4f) is outside the grid", p.X, p.Y)
		}
		if len(ids) > 0 && ids[len(ids)-1] == id {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
