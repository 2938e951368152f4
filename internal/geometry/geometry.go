// Package geometry provides planar point, polyline and polygon operations used
// by the schematizers.
package geometry

import (
	"math"
)

// Eps is the coordinate tolerance used for degeneracy and coincidence tests.
const Eps = 1e-9

// Point is a planar coordinate pair.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Scale returns p * k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// Dot returns the dot product.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Cross returns the z component of the cross product.
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }

// Norm returns the vector length.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the euclidean distance between p and q.
func Dist(p, q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Near reports whether p and q coincide within Eps.
func Near(p, q Point) bool { return Dist(p, q) <= Eps }

// Azimuth returns the compass bearing from p to q in degrees, clockwise from
// north, in [0, 360).
func Azimuth(p, q Point) float64 {
	a := math.Atan2(q.X-p.X, q.Y-p.Y) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return a
}

// Rotate rotates p about origin by deg degrees clockwise.
func Rotate(p, origin Point, deg float64) Point {
	r := -deg * math.Pi / 180
	s, c := math.Sincos(r)
	v := p.Sub(origin)
	return Point{origin.X + v.X*c - v.Y*s, origin.Y + v.X*s + v.Y*c}
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBBox returns a box that contains nothing and grows on Extend.
func EmptyBBox() BBox {
	return BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

// Extend grows b to include p.
func (b BBox) Extend(p Point) BBox {
	return BBox{math.Min(b.MinX, p.X), math.Min(b.MinY, p.Y), math.Max(b.MaxX, p.X), math.Max(b.MaxY, p.Y)}
}

// Buffer grows b by d on every side.
func (b BBox) Buffer(d float64) BBox {
	return BBox{b.MinX - d, b.MinY - d, b.MaxX + d, b.MaxY + d}
}

// Intersects reports whether the two boxes overlap or touch.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether p lies inside or on the boundary of b.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Polyline is an ordered sequence of points.
type Polyline []Point

// Valid reports whether pl has at least two vertices and a non-zero length.
func (pl Polyline) Valid() bool {
	return len(pl) >= 2 && pl.Length() > Eps
}

// Length returns the total length.
func (pl Polyline) Length() float64 {
	var l float64
	for i := 1; i < len(pl); i++ {
		l += Dist(pl[i-1], pl[i])
	}
	return l
}

// Bounds returns the bounding box of all vertices.
func (pl Polyline) Bounds() BBox {
	b := EmptyBBox()
	for _, p := range pl {
		b = b.Extend(p)
	}
	return b
}

// Start returns the first vertex.
func (pl Polyline) Start() Point { return pl[0] }

// End returns the last vertex.
func (pl Polyline) End() Point { return pl[len(pl)-1] }

// Reverse returns a copy with vertex order reversed.
func (pl Polyline) Reverse() Polyline {
	out := make(Polyline, len(pl))
	for i, p := range pl {
		out[len(pl)-1-i] = p
	}
	return out
}

// VertexDistances returns the along-line distance of every vertex.
func (pl Polyline) VertexDistances() []float64 {
	out := make([]float64, len(pl))
	for i := 1; i < len(pl); i++ {
		out[i] = out[i-1] + Dist(pl[i-1], pl[i])
	}
	return out
}

// Interpolate returns the point at distance d along pl, clamped to the ends.
func (pl Polyline) Interpolate(d float64) Point {
	if d <= 0 {
		return pl[0]
	}
	var acc float64
	for i := 1; i < len(pl); i++ {
		l := Dist(pl[i-1], pl[i])
		if acc+l >= d && l > 0 {
			t := (d - acc) / l
			return pl[i-1].Add(pl[i].Sub(pl[i-1]).Scale(t))
		}
		acc += l
	}
	return pl[len(pl)-1]
}

// Substring returns the part of pl between along-line distances d1 < d2.
func (pl Polyline) Substring(d1, d2 float64) Polyline {
	if d2 < d1 {
		d1, d2 = d2, d1
	}
	dists := pl.VertexDistances()
	out := Polyline{pl.Interpolate(d1)}
	for i, d := range dists {
		if d > d1+Eps && d < d2-Eps {
			out = append(out, pl[i])
		}
	}
	end := pl.Interpolate(d2)
	if !Near(end, out[len(out)-1]) || len(out) == 1 {
		out = append(out, end)
	}
	return out
}

// NearestVertex returns the index of the vertex closest to p. Ties resolve to
// the lower index.
func (pl Polyline) NearestVertex(p Point) int {
	best, idx := math.Inf(1), -1
	for i, v := range pl {
		if d := Dist(p, v); d < best-Eps {
			best, idx = d, i
		}
	}
	return idx
}

// ClipSegment clips segment a-b to box with Liang-Barsky. ok is false when the
// segment lies outside the box. A segment on the box boundary is kept.
func ClipSegment(a, b Point, box BBox) (Point, Point, bool) {
	t0, t1 := 0.0, 1.0
	d := b.Sub(a)
	edges := [4][2]float64{
		{-d.X, a.X - box.MinX},
		{d.X, box.MaxX - a.X},
		{-d.Y, a.Y - box.MinY},
		{d.Y, box.MaxY - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if math.Abs(p) < Eps*Eps {
			if q < 0 {
				return Point{}, Point{}, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return Point{}, Point{}, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return Point{}, Point{}, false
			}
			t1 = math.Min(t1, r)
		}
	}
	return a.Add(d.Scale(t0)), a.Add(d.Scale(t1)), true
}

// ClipToBox returns the pieces of pl inside box, in order. Consecutive pieces
// that join at a vertex inside the box are merged.
func ClipToBox(pl Polyline, box BBox) []Polyline {
	var out []Polyline
	var cur Polyline
	for i := 1; i < len(pl); i++ {
		p, q, ok := ClipSegment(pl[i-1], pl[i], box)
		if !ok || Dist(p, q) <= Eps {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		if len(cur) > 0 && Near(cur[len(cur)-1], p) {
			cur = append(cur, q)
			continue
		}
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = Polyline{p, q}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
