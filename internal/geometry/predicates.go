package geometry

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"
)

func (p Point) coord() geom.Coord { return geom.Coord{p.X, p.Y} }

// closedFlat returns the XY flat coordinates of pl, appending the first
// vertex again when the ring is open.
func (pl Polyline) closedFlat() []float64 {
	out := make([]float64, 0, 2*len(pl)+2)
	for _, p := range pl {
		out = append(out, p.X, p.Y)
	}
	if len(pl) > 0 && !Near(pl[0], pl[len(pl)-1]) {
		out = append(out, pl[0].X, pl[0].Y)
	}
	return out
}

// SegmentIntersection intersects segments a1-a2 and b1-b2. It returns the
// intersection point and the parameters along each segment. Collinear
// overlaps do not count as an intersection.
func SegmentIntersection(a1, a2, b1, b2 Point) (p Point, ta, tb float64, ok bool) {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		a1.coord(), a2.coord(), b1.coord(), b2.coord())
	if res.Type() != lineintersection.PointIntersection {
		return Point{}, 0, 0, false
	}
	c := res.Intersection()[0]
	p = Pt(c.X(), c.Y())
	return p, param(a1, a2, p), param(b1, b2, p), true
}

// param is the position of p along a-b in [0, 1].
func param(a, b, p Point) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return 0
	}
	t := p.Sub(a).Dot(ab) / l2
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// Intersection is a crossing of two polylines.
type Intersection struct {
	Point  Point
	AlongA float64
	AlongB float64
}

// Intersections returns the crossings of a and b ordered by distance along a.
// Crossings at a shared vertex are reported once.
func Intersections(a, b Polyline) []Intersection {
	if len(a) < 2 || len(b) < 2 || !a.Bounds().Intersects(b.Bounds()) {
		return nil
	}
	da, db := a.VertexDistances(), b.VertexDistances()
	var out []Intersection
	for i := 1; i < len(a); i++ {
		for j := 1; j < len(b); j++ {
			p, ta, tb, ok := SegmentIntersection(a[i-1], a[i], b[j-1], b[j])
			if !ok {
				continue
			}
			out = append(out, Intersection{
				Point:  p,
				AlongA: da[i-1] + ta*(da[i]-da[i-1]),
				AlongB: db[j-1] + tb*(db[j]-db[j-1]),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AlongA < out[j].AlongA })
	dedup := out[:0]
	for _, x := range out {
		if len(dedup) > 0 && Near(dedup[len(dedup)-1].Point, x.Point) {
			continue
		}
		dedup = append(dedup, x)
	}
	return dedup
}

// Intersects reports whether a and b cross or touch.
func Intersects(a, b Polyline) bool {
	return len(Intersections(a, b)) > 0
}

// PointInPolygon reports whether p lies inside ring or on its boundary. The
// ring may be open or closed.
func PointInPolygon(p Point, ring Polyline) bool {
	if len(ring) < 3 {
		return false
	}
	return xy.LocatePointInRing(geom.XY, p.coord(), ring.closedFlat()) != location.Exterior
}

// Locate projects p onto pl and returns the along-line distance of the
// closest point, the closest point itself, and the index of the segment it
// lies on. Ties resolve to the first segment.
func (pl Polyline) Locate(p Point) (along float64, closest Point, seg int) {
	best := -1.0
	var acc float64
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		l := Dist(a, b)
		if d := xy.DistanceFromPointToLine(p.coord(), a.coord(), b.coord()); best < 0 || d < best-Eps {
			t := param(a, b, p)
			best = d
			closest = a.Add(b.Sub(a).Scale(t))
			along = acc + t*l
			seg = i - 1
		}
		acc += l
	}
	return along, closest, seg
}
