package channel

import (
	"sort"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
)

// distances builds the rows of the distance table for one channel. Surveyed
// cross-sections act as anchors; each interpolated cross-section is located
// between the surveyed ones bracketing it.
func distances(c *Channel, rightIdx []int) []DistanceRow {
	left := c.SpinePoints.VertexDistances()
	var right []float64
	if len(c.RightSpinePoints) > 0 {
		right = c.RightSpinePoints.VertexDistances()
	}

	var rows []DistanceRow
	up := -1
	for i, x := range c.XS {
		if !x.Interpolated {
			up = i
			continue
		}
		lo := nextSurveyed(c.XS, i)
		if up < 0 || lo < 0 {
			continue
		}
		u, l := c.XS[up], c.XS[lo]
		row := DistanceRow{
			XSID:      x.ID,
			SegmentID: c.SegmentID,
			UpID:      u.ID,
			LoID:      l.ID,
			DistLB:    left[x.SpineIndex] - left[u.SpineIndex],
			TotalLB:   left[l.SpineIndex] - left[u.SpineIndex],
		}
		if right != nil {
			d := right[rightIdx[i]] - right[rightIdx[up]]
			t := right[rightIdx[lo]] - right[rightIdx[up]]
			row.DistRB, row.TotalRB = &d, &t
		}
		rows = append(rows, row)
	}
	return FillRightDistances(rows)
}

// RebuildDistances recomputes the distance table from the current
// cross-sections. Right-bank positions are found by searching RightSpine for
// each right cell, moving only downstream.
func (c *Channel) RebuildDistances() {
	idx := make([]int, len(c.XS))
	from := 0
	for i, x := range c.XS {
		for j := from; j < len(c.RightSpine); j++ {
			if c.RightSpine[j] == x.RightCell {
				from = j
				break
			}
		}
		idx[i] = from
	}
	c.Distances = distances(c, idx)
}

func nextSurveyed(xs []SchematicXS, from int) int {
	for j := from + 1; j < len(xs); j++ {
		if !xs[j].Interpolated {
			return j
		}
	}
	return -1
}

// FillRightDistances infers missing right-bank distances by linear
// interpolation over the left-bank distance, between the nearest defined
// anchors of the same interval. The interval ends count as anchors when the
// right-bank total is known. Rows without anchors on both sides stay nil.
func FillRightDistances(rows []DistanceRow) []DistanceRow {
	type anchor struct{ l, r float64 }
	byInterval := map[[2]int64][]int{}
	var keys [][2]int64
	for i, r := range rows {
		k := [2]int64{r.UpID, r.LoID}
		if _, ok := byInterval[k]; !ok {
			keys = append(keys, k)
		}
		byInterval[k] = append(byInterval[k], i)
	}

	for _, k := range keys {
		idx := byInterval[k]
		var anchors []anchor
		for _, i := range idx {
			r := rows[i]
			if r.TotalRB != nil {
				anchors = append(anchors, anchor{0, 0}, anchor{r.TotalLB, *r.TotalRB})
				break
			}
		}
		for _, i := range idx {
			if rows[i].DistRB != nil {
				anchors = append(anchors, anchor{rows[i].DistLB, *rows[i].DistRB})
			}
		}
		if len(anchors) < 2 {
			continue
		}
		sort.Slice(anchors, func(a, b int) bool { return anchors[a].l < anchors[b].l })

		for _, i := range idx {
			if rows[i].DistRB != nil {
				continue
			}
			l := rows[i].DistLB
			var lo, hi *anchor
			for a := range anchors {
				if anchors[a].l <= l {
					lo = &anchors[a]
				}
				if anchors[a].l >= l && hi == nil {
					hi = &anchors[a]
				}
			}
			if lo == nil || hi == nil {
				continue
			}
			v := lo.r
			if hi.l-lo.l > geometry.Eps {
				v = lo.r + (hi.r-lo.r)*(l-lo.l)/(hi.l-lo.l)
			}
			rows[i].DistRB = &v
		}
	}
	return rows
}
