package levee

import (
	"math"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// The octagon is inscribed in a square scaled to 90% of the cell, so the
// apothem is 0.45 cell and half a side is apothem/(1+sqrt 2).
const (
	apothemRatio  = 0.5 * 0.9
	halfSideRatio = 0.5 * 0.9 / 2.414
)

const sector = math.Pi / 4

// sectorDirection maps an octagon side, counted counter-clockwise from east,
// to its direction code.
var sectorDirection = [8]model.Direction{
	model.East, model.NorthEast, model.North, model.NorthWest,
	model.West, model.SouthWest, model.South, model.SouthEast,
}

func sectorOf(d model.Direction) int {
	for s, sd := range sectorDirection {
		if sd == d {
			return s
		}
	}
	return -1
}

// node returns the index of the octagon vertex clockwise of angle a. Vertex k
// sits at 22.5 + 45k degrees.
func node(a float64) int {
	n := int(math.Floor((a - sector/2) / sector))
	return mod8(n)
}

// Sides returns the octagon sides of a cell centred at c that the piece
// p1-p2 passes, in drawing order. Only sides enclosed between two octagon
// vertices crossed on the shorter arc from p1 to p2 count.
func Sides(c, p1, p2 geometry.Point) []model.Direction {
	a1 := math.Atan2(p1.Y-c.Y, p1.X-c.X)
	a2 := math.Atan2(p2.Y-c.Y, p2.X-c.X)
	n1, n2 := node(a1), node(a2)

	delta := math.Mod(a2-a1+4*math.Pi, 2*math.Pi)
	var out []model.Direction
	if delta >= math.Pi {
		// clockwise: vertices n1 down to n2+1
		crossed := mod8(n1 - n2)
		for k := 0; k < crossed-1; k++ {
			out = append(out, sectorDirection[mod8(n1-k)])
		}
		return out
	}
	crossed := mod8(n2 - n1)
	for k := 0; k < crossed-1; k++ {
		out = append(out, sectorDirection[mod8(n1+2+k)])
	}
	return out
}

// SideSegment returns the octagon side d of a cell centred at c.
func SideSegment(c geometry.Point, cellSize float64, d model.Direction) geometry.Polyline {
	phi := float64(sectorOf(d)) * sector
	m := SideMidpoint(c, cellSize, d)
	h := cellSize * halfSideRatio
	t := geometry.Pt(-math.Sin(phi), math.Cos(phi)).Scale(h)
	return geometry.Polyline{m.Sub(t), m.Add(t)}
}

// SideMidpoint returns the midpoint of octagon side d.
func SideMidpoint(c geometry.Point, cellSize float64, d model.Direction) geometry.Point {
	phi := float64(sectorOf(d)) * sector
	a := cellSize * apothemRatio
	return geometry.Pt(c.X+a*math.Cos(phi), c.Y+a*math.Sin(phi))
}

func mod8(n int) int {
	return ((n % 8) + 8) % 8
}
