package levee

import (
	"sort"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// groundElevation is the higher of the cell and its neighbour across side d.
// At the grid edge only the cell counts.
func groundElevation(g *grid.Grid, cell int64, d model.Direction) float64 {
	e, _ := g.Elevation(cell)
	if adj, ok := g.AdjacentCell(cell, d); ok {
		if ae, _ := g.Elevation(adj); ae > e {
			e = ae
		}
	}
	return e
}

// crest resolves the crest of one side:
//
//	elev and correction set: elev + correction
//	elev set:                elev
//	correction set:          ground + correction
//	neither:                 ground
func crest(g *grid.Grid, cell int64, d model.Direction, elev, correction *float64) float64 {
	var base float64
	if elev != nil {
		base = *elev
	} else {
		base = groundElevation(g, cell, d)
	}
	if correction != nil {
		base += *correction
	}
	return base
}

// failElevation returns the breach elevation of a side, if the line defines one.
// An absolute elevation wins over a depth above ground.
func failElevation(g *grid.Grid, cell int64, d model.Direction, failElev, failDepth *float64) (float64, bool) {
	switch {
	case failElev != nil:
		return *failElev, true
	case failDepth != nil:
		return groundElevation(g, cell, d) + *failDepth, true
	}
	return 0, false
}

// applyPolygons overrides crests of sides whose midpoint lies in a polygon.
// Polygons are applied in fid order so the highest fid wins on overlap.
func applyPolygons(g *grid.Grid, records []Record, polygons []Polygon) {
	if len(polygons) == 0 {
		return
	}
	ordered := append([]Polygon(nil), polygons...)
	sortPolygons(ordered)
	for i := range records {
		r := &records[i]
		c, ok := g.Centroid(r.CellID)
		if !ok {
			continue
		}
		m := SideMidpoint(c, g.CellSize(), r.Direction)
		for _, p := range ordered {
			if !p.Ring.Bounds().Contains(m) || !geometry.PointInPolygon(m, p.Ring) {
				continue
			}
			r.Crest = PolygonCrest(r.Crest, p.Elev, p.Correction)
		}
	}
}

// PolygonCrest applies a polygon's elevation and correction to an existing
// crest: elev + correction, elev, or existing + correction depending on which
// values are set.
func PolygonCrest(existing float64, elev, correction *float64) float64 {
	switch {
	case elev != nil && correction != nil:
		return *elev + *correction
	case elev != nil:
		return *elev
	case correction != nil:
		return existing + *correction
	}
	return existing
}

func sortPolygons(ps []Polygon) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].FID < ps[j].FID })
}
