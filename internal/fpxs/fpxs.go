// Package fpxs snaps floodplain cross-section lines to the eight grid
// directions and enumerates the cells along them.
package fpxs

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// Line is a user floodplain cross-section. A zero Iflo selects the default
// flow direction.
type Line struct {
	FID      int64
	Name     string
	Geometry geometry.Polyline
	Iflo     model.Direction
}

// Section is a schematized floodplain cross-section.
type Section struct {
	FID      int64
	Name     string
	Azimuth  float64
	Iflo     model.Direction
	Cells    []int64
	Geometry geometry.Polyline
}

// Input is everything a floodplain cross-section run reads.
type Input struct {
	Grid     *grid.Grid
	Lines    []Line
	Progress model.ProgressFunc
}

// Result holds the schematized sections ordered by fid.
type Result struct {
	Sections []Section
	Report   *model.Report
}

// AllowedIflo returns the two flow directions perpendicular to the bearing az
// once rounded to 45 degrees, in code order.
func AllowedIflo(az float64) [2]model.Direction {
	r := model.DirectionFromAzimuth(az).Azimuth()
	a := model.DirectionFromAzimuth(r + 90)
	b := model.DirectionFromAzimuth(r + 270)
	if b < a {
		a, b = b, a
	}
	return [2]model.Direction{a, b}
}

// DefaultIflo is the direction to the right of the bearing az.
func DefaultIflo(az float64) model.Direction {
	return model.DirectionFromAzimuth(model.DirectionFromAzimuth(az).Azimuth() + 90)
}

// Align rotates end about start so that the bearing from start is a multiple
// of 45 degrees. It returns the new end and the rounded bearing.
func Align(start, end geometry.Point) (geometry.Point, float64) {
	az := geometry.Azimuth(start, end)
	rounded := model.DirectionFromAzimuth(az).Azimuth()
	return geometry.Rotate(end, start, rounded-az), rounded
}

// Schematize snaps every floodplain cross-section.
func Schematize(ctx context.Context, in Input) (*Result, error) {
	if in.Grid == nil || in.Grid.Len() == 0 {
		return nil, model.NewPrecondition(model.KindEmptyGrid, 0, "floodplain cross-sections need a grid")
	}
	if len(in.Lines) == 0 {
		return nil, model.NewPrecondition(model.KindMissingLayer, 0, "no floodplain cross-sections")
	}

	report := model.NewReport("fpxsec")
	lines := append([]Line(nil), in.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].FID < lines[j].FID })

	res := &Result{Report: report}
	for i, ln := range lines {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}
		if s, ok := snap(in.Grid, ln, report); ok {
			res.Sections = append(res.Sections, s)
			report.Add("cells", len(s.Cells))
		}
		if in.Progress != nil {
			in.Progress(100*float64(i+1)/float64(len(lines)), fmt.Sprintf("snapped floodplain cross-section %d", ln.FID))
		}
	}
	report.Add("sections", len(res.Sections))
	return res, nil
}

func snap(g *grid.Grid, ln Line, report *model.Report) (Section, bool) {
	if !ln.Geometry.Valid() {
		report.Skip(model.NewFeatureError(model.KindDegenerateGeometry, ln.FID, "floodplain cross-section %d is degenerate", ln.FID))
		zap.L().Warn("fpxs: degenerate line skipped", zap.Int64("fpxs_fid", ln.FID))
		return Section{}, false
	}
	start := ln.Geometry.Start()
	end, az := Align(start, ln.Geometry.End())

	first, ok := g.CellAt(start)
	if !ok {
		report.Skip(model.NewFeatureError(model.KindCellOutsideGrid, ln.FID, "floodplain cross-section %d starts outside the grid", ln.FID))
		zap.L().Warn("fpxs: start outside grid", zap.Int64("fpxs_fid", ln.FID))
		return Section{}, false
	}

	d := model.DirectionFromAzimuth(az)
	if !d.Valid() {
		report.Skip(model.NewFeatureError(model.KindDegenerateGeometry, ln.FID, "floodplain cross-section %d has no bearing", ln.FID))
		zap.L().Warn("fpxs: bearing not finite", zap.Int64("fpxs_fid", ln.FID))
		return Section{}, false
	}
	step := g.CellSize()
	if d.Diagonal() {
		step *= math.Sqrt2
	}
	n := int(math.Round(geometry.Dist(start, end) / step))

	cells := []int64{first}
	for k := 0; k < n; k++ {
		next, ok := g.AdjacentCell(cells[len(cells)-1], d)
		if !ok {
			report.Warn(model.NewFeatureError(model.KindCellOutsideGrid, ln.FID,
				"floodplain cross-section %d leaves the grid after %d cells", ln.FID, len(cells)))
			break
		}
		cells = append(cells, next)
	}
	if len(cells) < 2 {
		report.Skip(model.NewFeatureError(model.KindDegenerateGeometry, ln.FID,
			"floodplain cross-section %d covers a single cell", ln.FID))
		zap.L().Warn("fpxs: single cell section skipped", zap.Int64("fpxs_fid", ln.FID))
		return Section{}, false
	}

	iflo := DefaultIflo(az)
	if ln.Iflo != 0 {
		allowed := AllowedIflo(az)
		if ln.Iflo == allowed[0] || ln.Iflo == allowed[1] {
			iflo = ln.Iflo
		} else {
			report.Warn(model.NewFeatureError(model.KindInvalidDirection, ln.FID,
				"iflo %d is not perpendicular to bearing %.0f, using %d", ln.Iflo, az, iflo))
		}
	}

	geom, _ := g.Polyline(cells)
	return Section{
		FID:      ln.FID,
		Name:     ln.Name,
		Azimuth:  az,
		Iflo:     iflo,
		Cells:    cells,
		Geometry: geom,
	}, true
}
