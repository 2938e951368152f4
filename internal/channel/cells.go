package channel

import (
	"math"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
)

// InteriorCells walks from p1 to p2 in quarter-cell steps and returns the
// cells crossed strictly between the cells of the two endpoints, in walking
// order and without duplicates.
func InteriorCells(g *grid.Grid, p1, p2 geometry.Point) []int64 {
	first, _ := g.CellAt(p1)
	last, _ := g.CellAt(p2)
	length := geometry.Dist(p1, p2)
	step := g.CellSize() / 4
	n := int(math.Ceil(length / step))
	if n == 0 {
		return nil
	}

	seen := map[int64]bool{first: true, last: true}
	var out []int64
	d := p2.Sub(p1)
	for k := 1; k < n; k++ {
		p := p1.Add(d.Scale(float64(k) / float64(n)))
		id, ok := g.CellAt(p)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
