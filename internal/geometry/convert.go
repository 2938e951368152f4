package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// LineString converts pl to a go-geom line string.
func (pl Polyline) LineString() *geom.LineString {
	flat := make([]float64, 0, len(pl)*2)
	for _, p := range pl {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// Polygon converts ring to a go-geom polygon, closing it when needed.
func (pl Polyline) Polygon() *geom.Polygon {
	ring := pl
	if len(ring) > 0 && !Near(ring[0], ring[len(ring)-1]) {
		ring = append(append(Polyline{}, ring...), ring[0])
	}
	flat := make([]float64, 0, len(ring)*2)
	for _, p := range ring {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// FromCoords builds a polyline from go-geom coordinates.
func FromCoords(coords []geom.Coord) Polyline {
	out := make(Polyline, 0, len(coords))
	for _, c := range coords {
		out = append(out, Point{c.X(), c.Y()})
	}
	return out
}

// FromGeom converts a line string, a single-part multi line string, or a
// polygon exterior ring into a polyline.
func FromGeom(g geom.T) (Polyline, error) {
	switch t := g.(type) {
	case *geom.LineString:
		return FromCoords(t.Coords()), nil
	case *geom.MultiLineString:
		if t.NumLineStrings() == 0 {
			return nil, eris.New("geometry: empty multilinestring")
		}
		if t.NumLineStrings() > 1 {
			return nil, eris.Errorf("geometry: multilinestring with %d parts", t.NumLineStrings())
		}
		return FromCoords(t.LineString(0).Coords()), nil
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, eris.New("geometry: empty polygon")
		}
		return FromCoords(t.LinearRing(0).Coords()), nil
	case *geom.MultiPolygon:
		if t.NumPolygons() != 1 || t.Polygon(0).NumLinearRings() == 0 {
			return nil, eris.Errorf("geometry: multipolygon with %d parts", t.NumPolygons())
		}
		return FromCoords(t.Polygon(0).LinearRing(0).Coords()), nil
	case *geom.Point:
		return Polyline{{t.X(), t.Y()}}, nil
	default:
		return nil, eris.Errorf("geometry: unsupported geometry %T", g)
	}
}

// ParseWKT decodes a WKT string into a polyline.
func ParseWKT(s string) (Polyline, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: parse wkt")
	}
	return FromGeom(g)
}

// WKT encodes pl as a LINESTRING, or as a POINT when it holds one vertex.
func (pl Polyline) WKT() (string, error) {
	var g geom.T
	if len(pl) == 1 {
		g = geom.NewPointFlat(geom.XY, []float64{pl[0].X, pl[0].Y})
	} else {
		g = pl.LineString()
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "geometry: marshal wkt")
	}
	return s, nil
}
