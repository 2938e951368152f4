package channel

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// crossing is the intersection of a user cross-section with a bank line.
type crossing struct {
	xs    *xsec.CrossSection
	point geometry.Point
	along float64
}

// matcher resolves which cross-sections and right banks belong to each left bank.
type matcher struct {
	grid    *grid.Grid
	catalog *xsec.Catalog
	index   *grid.SpatialIndex
	rights  []rightCrossings
}

type rightCrossings struct {
	bank      RightBank
	crossings []crossing
	used      bool
}

func newMatcher(g *grid.Grid, catalog *xsec.Catalog, rights []RightBank, report *model.Report) *matcher {
	geoms := make(map[int64]geometry.Polyline, catalog.Len())
	for _, x := range catalog.All() {
		geoms[x.FID] = x.Geometry
	}
	m := &matcher{grid: g, catalog: catalog, index: grid.IndexPolylines(geoms)}

	sorted := append([]RightBank(nil), rights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FID < sorted[j].FID })
	for _, rb := range sorted {
		m.rights = append(m.rights, rightCrossings{bank: rb, crossings: m.crossings(rb.FID, rb.Geometry, report)})
	}
	return m
}

// crossings returns the cross-sections intersecting bank, ordered by the
// along-bank position of their first intersection.
func (m *matcher) crossings(bankFID int64, bank geometry.Polyline, report *model.Report) []crossing {
	var out []crossing
	for _, fid := range m.index.Intersects(bank.Bounds()) {
		x, _ := m.catalog.Get(fid)
		hits := geometry.Intersections(bank, x.Geometry)
		if len(hits) == 0 {
			continue
		}
		if len(hits) > 1 && report != nil {
			report.Warn(model.NewFeatureError(model.KindMultipleIntersections, x.FID,
				"cross-section %q crosses bank %d %d times, using the first", x.Name, bankFID, len(hits)))
			zap.L().Warn("channel: cross-section crosses bank more than once",
				zap.Int64("xs_fid", x.FID), zap.Int64("bank_fid", bankFID), zap.Int("crossings", len(hits)))
		}
		out = append(out, crossing{xs: x, point: hits[0].Point, along: hits[0].AlongA})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].along == out[j].along {
			return out[i].xs.FID < out[j].xs.FID
		}
		return out[i].along < out[j].along
	})
	return out
}

// sortedXS applies the left-bank matching rules and returns the ordered
// cross-sections of lb. Violations are precondition failures.
func (m *matcher) sortedXS(lb LeftBank, report *model.Report) ([]crossing, error) {
	if !lb.Geometry.Valid() {
		return nil, model.NewPrecondition(model.KindDegenerateGeometry, lb.FID, "left bank %d is degenerate", lb.FID)
	}
	xs := m.crossings(lb.FID, lb.Geometry, report)
	if len(xs) < 2 {
		return nil, model.NewPrecondition(model.KindTooFewCrossSections, lb.FID,
			"left bank %d is crossed by %d cross-sections, at least 2 are required", lb.FID, len(xs))
	}
	first := xs[0].xs
	lbCell, ok1 := m.grid.CellAt(lb.Geometry.Start())
	xsCell, ok2 := m.grid.CellAt(first.Geometry.Start())
	if !ok1 || !ok2 || lbCell != xsCell {
		return nil, model.NewPrecondition(model.KindFirstXSNotInFirstCell, lb.FID,
			"first cross-section %q (fid %d) of left bank %d does not start in the left bank's first cell %d (starts in %d)",
			first.Name, first.FID, lb.FID, lbCell, xsCell)
	}
	return xs, nil
}

// rightBank finds the right bank crossed by exactly the same ordered
// cross-sections as the left bank.
func (m *matcher) rightBank(lb LeftBank, left []crossing) (*rightCrossings, error) {
	for i := range m.rights {
		rc := &m.rights[i]
		if !sameOrder(left, rc.crossings) {
			continue
		}
		first := left[0].xs
		rbCell, ok1 := m.grid.CellAt(rc.bank.Geometry.Start())
		xsCell, ok2 := m.grid.CellAt(first.Geometry.End())
		if !ok1 || !ok2 || rbCell != xsCell {
			return nil, model.NewPrecondition(model.KindFirstXSNotInFirstRBCell, lb.FID,
				"first cross-section %q (fid %d) of left bank %d does not end in the first cell %d of right bank %d",
				first.Name, first.FID, lb.FID, rbCell, rc.bank.FID)
		}
		rc.used = true
		return rc, nil
	}
	return nil, nil
}

// unmatched reports right banks that no left bank claimed.
func (m *matcher) unmatched(report *model.Report) {
	for _, rc := range m.rights {
		if rc.used {
			continue
		}
		report.Warn(model.NewFeatureError(model.KindUnmatchedRightBank, rc.bank.FID,
			"right bank %d does not cross the same cross-sections as any left bank", rc.bank.FID))
		zap.L().Warn("channel: unmatched right bank", zap.Int64("rb_fid", rc.bank.FID))
	}
}

func sameOrder(a, b []crossing) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].xs.FID != b[i].xs.FID {
			return false
		}
	}
	return true
}
