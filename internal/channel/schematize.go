package channel

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/rasterline"
)

// Schematize pairs every left bank with its cross-sections and right bank and
// derives the schematic channel. Precondition failures abort the whole run and
// are returned as *model.FeatureError; per-feature problems are recorded in
// the result report.
func Schematize(ctx context.Context, in Input) (*Result, error) {
	if in.Grid == nil || in.Grid.Len() == 0 {
		return nil, model.NewPrecondition(model.KindEmptyGrid, 0, "channel schematization needs a grid")
	}
	if len(in.LeftBanks) == 0 {
		return nil, model.NewPrecondition(model.KindMissingLayer, 0, "no left bank lines")
	}
	if in.CrossSections == nil || in.CrossSections.Len() == 0 {
		return nil, model.NewPrecondition(model.KindMissingLayer, 0, "no cross-sections")
	}

	log := zap.L().With(zap.String("component", "channel"))
	report := model.NewReport("channel")
	m := newMatcher(in.Grid, in.CrossSections, in.RightBanks, report)

	lbs := append([]LeftBank(nil), in.LeftBanks...)
	sort.Slice(lbs, func(i, j int) bool { return lbs[i].FID < lbs[j].FID })

	res := &Result{Report: report}
	nextID := int64(1)
	for i, lb := range lbs {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}

		xs, err := m.sortedXS(lb, report)
		if err != nil {
			return nil, err
		}
		var rc *rightCrossings
		if len(m.rights) > 0 {
			if rc, err = m.rightBank(lb, xs); err != nil {
				return nil, err
			}
		}

		s := &segment{grid: in.Grid, lb: lb, xs: xs, rc: rc, defaultN: in.DefaultManning, report: report}
		c, ok := s.build(&nextID)
		if ok {
			res.Channels = append(res.Channels, c)
			report.Add("segments", 1)
			report.Add("surveyed", c.Surveyed())
			report.Add("interpolated", len(c.XS)-c.Surveyed())
			log.Debug("channel: segment schematized",
				zap.Int64("segment_id", c.SegmentID),
				zap.Int("xs", len(c.XS)),
				zap.Int("interior_cells", len(c.Interior)))
		}

		if in.Progress != nil {
			in.Progress(100*float64(i+1)/float64(len(lbs)), fmt.Sprintf("schematized left bank %d", lb.FID))
		}
	}
	m.unmatched(report)

	res.NoExchange = noExchange(in.Grid, in.NoExchange, report)
	return res, nil
}

// segment carries the working state of one left bank.
type segment struct {
	grid     *grid.Grid
	lb       LeftBank
	xs       []crossing
	rc       *rightCrossings
	defaultN float64
	report   *model.Report
}

func (s *segment) skip(kind model.Kind, format string, args ...any) {
	fe := model.NewFeatureError(kind, s.lb.FID, format, args...)
	s.report.Skip(fe)
	zap.L().Warn("channel: segment skipped",
		zap.Int64("segment_id", s.lb.FID), zap.String("kind", string(kind)), zap.String("reason", fe.Message))
}

// build schematizes the segment. nextID is the global schematic XS counter;
// it only advances when the segment succeeds.
func (s *segment) build(nextID *int64) (*Channel, bool) {
	g := s.grid
	leftCells, err := rasterline.Cells(g, s.lb.Geometry)
	if err != nil {
		s.skip(model.KindCellOutsideGrid, "left bank %d: %v", s.lb.FID, err)
		return nil, false
	}
	leftPts, _ := g.Polyline(leftCells)

	var rightCells []int64
	var rightPts geometry.Polyline
	if s.rc != nil {
		if rightCells, err = rasterline.Cells(g, s.rc.bank.Geometry); err != nil {
			s.skip(model.KindCellOutsideGrid, "right bank %d: %v", s.rc.bank.FID, err)
			return nil, false
		}
		rightPts, _ = g.Polyline(rightCells)
	}

	// station indices, monotone along both spines
	type station struct {
		k      int
		il, ir int
	}
	var stations []station
	for k, x := range s.xs {
		il := nearestFrom(leftPts, x.point, 0)
		ir := 0
		if len(stations) > 0 {
			prev := stations[len(stations)-1]
			il = nearestFrom(leftPts, x.point, prev.il)
			if il <= prev.il {
				s.report.Warn(model.NewFeatureError(model.KindCrossSectionsTooClose, x.xs.FID,
					"cross-section %q shares spine cell %d with the previous cross-section of segment %d",
					x.xs.Name, leftCells[il], s.lb.FID))
				zap.L().Warn("channel: cross-sections too close",
					zap.Int64("segment_id", s.lb.FID), zap.Int64("xs_fid", x.xs.FID))
				continue
			}
		}
		if s.rc != nil {
			from := 0
			if len(stations) > 0 {
				from = stations[len(stations)-1].ir
			}
			ir = nearestFrom(rightPts, s.rc.crossings[k].point, from)
		}
		stations = append(stations, station{k: k, il: il, ir: ir})
	}
	if len(stations) < 2 {
		s.skip(model.KindTooFewCrossSections, "left bank %d keeps %d usable cross-sections", s.lb.FID, len(stations))
		return nil, false
	}

	first, last := stations[0], stations[len(stations)-1]
	c := &Channel{
		SegmentID:   s.lb.FID,
		Name:        s.lb.Name,
		LeftBankFID: s.lb.FID,
		DepInitial:  s.lb.DepInitial,
		FroudC:      s.lb.FroudC,
		RoughAdj:    s.lb.RoughAdj,
		Isedn:       s.lb.Isedn,
		Rank:        s.lb.Rank,
		WSE:         s.lb.WSE,
		Spine:       append([]int64(nil), leftCells[first.il:last.il+1]...),
		SpinePoints: append(geometry.Polyline(nil), leftPts[first.il:last.il+1]...),
	}
	if c.Rank == 0 {
		c.Rank = 1
	}
	if s.rc != nil {
		c.RightBankFID = s.rc.bank.FID
		c.RightSpine = append([]int64(nil), rightCells[first.ir:last.ir+1]...)
		c.RightSpinePoints = append(geometry.Polyline(nil), rightPts[first.ir:last.ir+1]...)
	}

	var rightIdx []int
	emit := func(il, ir int, st station, interpolated bool) {
		x := s.xs[st.k].xs
		sx := SchematicXS{
			SegmentID:    c.SegmentID,
			UserXSFID:    x.FID,
			Interpolated: interpolated,
			FCN:          x.EffectiveManning(s.defaultN),
			LeftCell:     leftCells[il],
			SpineIndex:   il - first.il,
		}
		lp := leftPts[il]
		if s.rc != nil {
			sx.RightCell = rightCells[ir]
			sx.Geometry = geometry.Polyline{lp, rightPts[ir]}
		} else {
			sx.RightCell = sx.LeftCell
			sx.Geometry = geometry.Polyline{lp, s.stub(leftPts, il, first.il, last.il)}
		}
		c.XS = append(c.XS, sx)
		rightIdx = append(rightIdx, ir-first.ir)
	}

	for n := 0; n+1 < len(stations); n++ {
		a, b := stations[n], stations[n+1]
		dL, dR := b.il-a.il, b.ir-a.ir
		emit(a.il, a.ir, a, false)
		for k := 1; k < dL; k++ {
			ir := a.ir
			if s.rc != nil {
				ir = a.ir + int(math.Round(float64(k)*float64(dR)/float64(dL)))
			}
			emit(a.il+k, ir, a, true)
		}
	}
	emit(last.il, last.ir, last, false)

	for i := range c.XS {
		c.XS[i].Order = i + 1
		c.XS[i].ID = *nextID
		*nextID++
		c.XS[i].XLen = xlen(c.SpinePoints, c.XS[i].SpineIndex, g.CellSize())
		for _, id := range InteriorCells(g, c.XS[i].Geometry.Start(), c.XS[i].Geometry.End()) {
			if id == c.XS[i].LeftCell || id == c.XS[i].RightCell {
				continue
			}
			c.Interior = append(c.Interior, InteriorCell{SegmentID: c.SegmentID, XSID: c.XS[i].ID, CellID: id})
		}
	}

	var bankStations []geometry.Point
	for _, st := range stations {
		bankStations = append(bankStations, s.xs[st.k].point)
	}
	c.LeftLine = insertStations(c.SpinePoints, bankStations)
	c.Distances = distances(c, rightIdx)
	return c, true
}

// stub synthesizes the right end of a cross-section when the segment has no
// right bank: half a cell to the right of the flow direction.
func (s *segment) stub(pts geometry.Polyline, il, lo, hi int) geometry.Point {
	cur := pts[il]
	var v geometry.Point
	switch {
	case il < hi:
		v = pts[il+1].Sub(cur)
	case il > lo:
		v = cur.Sub(pts[il-1])
	}
	h := s.grid.CellSize() / 2
	return geometry.Pt(cur.X+sign(v.Y)*h, cur.Y+sign(-v.X)*h)
}

// nearestFrom returns the index of the vertex of pl closest to p, searching
// only from index from onwards.
func nearestFrom(pl geometry.Polyline, p geometry.Point, from int) int {
	if from >= len(pl) {
		return len(pl) - 1
	}
	return from + pl[from:].NearestVertex(p)
}

// xlen is the channel length represented by spine vertex i: the mean of the
// distances to its neighbours, with a full cell assumed past either end.
func xlen(spine geometry.Polyline, i int, cellSize float64) float64 {
	prev, next := cellSize, cellSize
	if i > 0 {
		prev = geometry.Dist(spine[i-1], spine[i])
	}
	if i+1 < len(spine) {
		next = geometry.Dist(spine[i], spine[i+1])
	}
	return (prev + next) / 2
}

// insertStations adds the projections of bank stations onto line as extra
// vertices.
func insertStations(line geometry.Polyline, stations []geometry.Point) geometry.Polyline {
	type ins struct {
		seg   int
		along float64
		p     geometry.Point
	}
	var adds []ins
	for _, st := range stations {
		along, q, seg := line.Locate(st)
		if geometry.Near(line[line.NearestVertex(q)], q) {
			continue
		}
		adds = append(adds, ins{seg: seg, along: along, p: q})
	}
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].along < adds[j].along })

	out := make(geometry.Polyline, 0, len(line)+len(adds))
	a := 0
	for i, v := range line {
		out = append(out, v)
		for a < len(adds) && adds[a].seg == i {
			if !geometry.Near(out[len(out)-1], adds[a].p) {
				out = append(out, adds[a].p)
			}
			a++
		}
	}
	return out
}

func noExchange(g *grid.Grid, cells []int64, report *model.Report) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, id := range cells {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := g.Cell(id); !ok {
			report.Warn(model.NewFeatureError(model.KindCellOutsideGrid, id, "no-exchange cell %d is not in the grid", id))
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sign(v float64) float64 {
	switch {
	case v > geometry.Eps:
		return 1
	case v < -geometry.Eps:
		return -1
	}
	return 0
}
