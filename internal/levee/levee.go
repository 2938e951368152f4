// Package levee projects user levee lines onto the octagon sides of the cells
// they cross and resolves levees that face each other across a cell edge.
package levee

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// FailureParams describe how a levee breach develops.
type FailureParams struct {
	FailTime     float64 `json:"failtime" yaml:"failtime"`
	LevBase      float64 `json:"levbase" yaml:"levbase"`
	FailWidthMax float64 `json:"failwidthmax" yaml:"failwidthmax"`
	FailRate     float64 `json:"failrate" yaml:"failrate"`
	FailWidRate  float64 `json:"failwidrate" yaml:"failwidrate"`
}

// Line is a user levee line. Nil values are unset.
type Line struct {
	FID        int64
	Geometry   geometry.Polyline
	Elev       *float64
	Correction *float64
	FailElev   *float64
	FailDepth  *float64
	Failure    FailureParams
}

// Polygon overrides the crest of the levee sides whose midpoint it contains.
type Polygon struct {
	FID        int64
	Ring       geometry.Polyline
	Elev       *float64
	Correction *float64
}

// Record is one schematized levee side.
type Record struct {
	CellID    int64
	Direction model.Direction
	Crest     float64
	LineFID   int64
	Geometry  geometry.Polyline
}

// Failure is the breach definition of a levee side.
type Failure struct {
	CellID    int64
	Direction model.Direction
	FailElev  float64
	LineFID   int64
	FailureParams
}

// Input is everything a levee schematization run reads.
type Input struct {
	Grid     *grid.Grid
	Lines    []Line
	Polygons []Polygon
	Progress model.ProgressFunc
}

// Result holds the deduplicated levee sides ordered by cell and direction.
type Result struct {
	Records  []Record
	Failures []Failure
	Report   *model.Report
}

type key struct {
	cell int64
	dir  model.Direction
}

// Schematize projects every levee line onto the octagon sides of the cells it
// crosses, applies polygon crests and removes opposing duplicates.
func Schematize(ctx context.Context, in Input) (*Result, error) {
	if in.Grid == nil || in.Grid.Len() == 0 {
		return nil, model.NewPrecondition(model.KindEmptyGrid, 0, "levee schematization needs a grid")
	}
	if len(in.Lines) == 0 {
		return nil, model.NewPrecondition(model.KindMissingLayer, 0, "no levee lines")
	}

	g := in.Grid
	report := model.NewReport("levee")
	lines := append([]Line(nil), in.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].FID < lines[j].FID })

	records := map[key]Record{}
	failures := map[key]Failure{}
	for i, ln := range lines {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}
		if !ln.Geometry.Valid() {
			report.Skip(model.NewFeatureError(model.KindDegenerateGeometry, ln.FID, "levee line %d is degenerate", ln.FID))
			zap.L().Warn("levee: degenerate line skipped", zap.Int64("levee_fid", ln.FID))
			continue
		}

		sides := project(g, ln.Geometry)
		if len(sides) == 0 {
			report.Skip(model.NewFeatureError(model.KindNoIntersection, ln.FID, "levee line %d crosses no octagon side", ln.FID))
			zap.L().Warn("levee: line produced no sides", zap.Int64("levee_fid", ln.FID))
		}
		for _, side := range sides {
			rec := Record{
				CellID:    side.cell,
				Direction: side.dir,
				Crest:     crest(g, side.cell, side.dir, ln.Elev, ln.Correction),
				LineFID:   ln.FID,
			}
			k := key{side.cell, side.dir}
			if prev, ok := records[k]; ok && !better(rec, prev) {
				continue
			}
			records[k] = rec
			if fe, ok := failElevation(g, side.cell, side.dir, ln.FailElev, ln.FailDepth); ok {
				failures[k] = Failure{CellID: side.cell, Direction: side.dir, FailElev: fe, LineFID: ln.FID, FailureParams: ln.Failure}
			} else {
				delete(failures, k)
			}
		}
		if in.Progress != nil {
			in.Progress(100*float64(i+1)/float64(len(lines)), fmt.Sprintf("projected levee line %d", ln.FID))
		}
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	applyPolygons(g, out, in.Polygons)
	before := len(out)
	out = Deduplicate(g, out)
	report.Add("removed_opposing", before-len(out))

	res := &Result{Report: report}
	for i := range out {
		c, _ := g.Centroid(out[i].CellID)
		out[i].Geometry = SideSegment(c, g.CellSize(), out[i].Direction)
		if f, ok := failures[key{out[i].CellID, out[i].Direction}]; ok {
			res.Failures = append(res.Failures, f)
		}
	}
	res.Records = out
	report.Add("levees", len(out))
	report.Add("failures", len(res.Failures))
	return res, nil
}

type side struct {
	cell int64
	dir  model.Direction
}

// project clips line to every cell it may touch and returns the octagon
// sides each piece passes.
func project(g *grid.Grid, line geometry.Polyline) []side {
	var out []side
	for _, id := range g.CellsInBox(line.Bounds()) {
		box, _ := g.CellBox(id)
		c, _ := g.Centroid(id)
		for _, piece := range geometry.ClipToBox(line, box) {
			for _, d := range Sides(c, piece.Start(), piece.End()) {
				out = append(out, side{cell: id, dir: d})
			}
		}
	}
	return out
}

// better reports whether a should replace b for the same cell side.
func better(a, b Record) bool {
	if a.Crest != b.Crest {
		return a.Crest > b.Crest
	}
	return a.LineFID < b.LineFID
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CellID != rs[j].CellID {
			return rs[i].CellID < rs[j].CellID
		}
		return rs[i].Direction < rs[j].Direction
	})
}
