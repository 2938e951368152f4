// Package confluence joins tributary channels to the channel they flow into
// and trims tributaries back to the receiving bank.
package confluence

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// Side is the bank of the receiving channel a tributary joins.
type Side string

// Receiving banks.
const (
	Left  Side = "left"
	Right Side = "right"
)

// Confluence is the cell pair where a tributary joins its receiver.
type Confluence struct {
	TributarySegment int64 `json:"tributary_segment"`
	TributaryCell    int64 `json:"tributary_cell"`
	MainSegment      int64 `json:"main_segment"`
	MainCell         int64 `json:"main_cell"`
	Side             Side  `json:"side"`
}

// Result holds trimmed copies of the input channels and the confluences.
type Result struct {
	Channels    []*channel.Channel
	Confluences []Confluence
	Report      *model.Report
}

// Resolve finds, for every channel of rank r > 1, a receiver of rank r-1
// whose bank crosses its spine, trims the tributary back until it no longer
// crosses either bank and records the confluence. Input channels are not
// modified.
func Resolve(ctx context.Context, channels []*channel.Channel) (*Result, error) {
	report := model.NewReport("confluence")
	res := &Result{Report: report}
	for _, c := range channels {
		res.Channels = append(res.Channels, clone(c))
	}
	sort.Slice(res.Channels, func(i, j int) bool { return res.Channels[i].SegmentID < res.Channels[j].SegmentID })

	for _, trib := range res.Channels {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}
		if trib.Rank <= 1 {
			continue
		}
		recv, side := receiver(trib, res.Channels)
		if recv == nil {
			report.Warn(model.NewFeatureError(model.KindNoReceiver, trib.SegmentID,
				"segment %d of rank %d crosses no bank of a rank %d segment", trib.SegmentID, trib.Rank, trib.Rank-1))
			zap.L().Warn("confluence: no receiver", zap.Int64("segment_id", trib.SegmentID), zap.Int("rank", trib.Rank))
			continue
		}

		cut := trimIndex(trib.SpinePoints, recv)
		if cut < 1 {
			report.Skip(model.NewFeatureError(model.KindDegenerateGeometry, trib.SegmentID,
				"segment %d lies entirely on the banks of segment %d", trib.SegmentID, recv.SegmentID))
			zap.L().Warn("confluence: tributary fully inside receiver",
				zap.Int64("segment_id", trib.SegmentID), zap.Int64("receiver", recv.SegmentID))
			continue
		}

		bank, bankPts := recv.Spine, recv.SpinePoints
		if side == Right {
			bank, bankPts = recv.RightSpine, recv.RightSpinePoints
		}
		main := bank[bankPts.NearestVertex(trib.SpinePoints[cut+1])]

		removed, promoted := truncate(trib, cut)
		res.Confluences = append(res.Confluences, Confluence{
			TributarySegment: trib.SegmentID,
			TributaryCell:    trib.Spine[cut],
			MainSegment:      recv.SegmentID,
			MainCell:         main,
			Side:             side,
		})
		report.Add("confluences", 1)
		report.Add("removed_xs", removed)
		if promoted {
			report.Add("promoted_xs", 1)
		}
	}
	return res, nil
}

// receiver picks the lower-ranked channel whose bank the tributary spine
// crosses first, and which bank that is.
func receiver(trib *channel.Channel, all []*channel.Channel) (*channel.Channel, Side) {
	var best *channel.Channel
	var bestSide Side
	bestAlong := 0.0
	for _, c := range all {
		if c == trib || c.Rank != trib.Rank-1 {
			continue
		}
		for _, b := range []struct {
			side Side
			pts  geometry.Polyline
		}{{Left, c.SpinePoints}, {Right, c.RightSpinePoints}} {
			hits := geometry.Intersections(trib.SpinePoints, b.pts)
			if len(hits) == 0 {
				continue
			}
			if best == nil || hits[0].AlongA < bestAlong-geometry.Eps {
				best, bestSide, bestAlong = c, b.side, hits[0].AlongA
			}
		}
	}
	return best, bestSide
}

// trimIndex returns the index of the last spine vertex kept once trailing
// vertices are removed until the spine crosses neither bank of recv.
func trimIndex(spine geometry.Polyline, recv *channel.Channel) int {
	last := len(spine) - 1
	for last >= 1 {
		s := spine[:last+1]
		if !geometry.Intersects(s, recv.SpinePoints) && !geometry.Intersects(s, recv.RightSpinePoints) {
			break
		}
		last--
	}
	return last
}

// truncate drops everything of c past spine index last and returns the
// number of cross-sections removed. When the new last cross-section was
// interpolated it becomes the surveyed end of the segment, and the distance
// table is rebuilt against it.
func truncate(c *channel.Channel, last int) (removed int, promoted bool) {
	endPt := c.SpinePoints[last]
	c.Spine = c.Spine[:last+1]
	c.SpinePoints = c.SpinePoints[:last+1]
	if len(c.LeftLine) > 0 {
		along, _, _ := c.LeftLine.Locate(endPt)
		c.LeftLine = c.LeftLine.Substring(0, along)
	}

	kept := c.XS[:0]
	gone := map[int64]bool{}
	for _, x := range c.XS {
		if x.SpineIndex > last {
			gone[x.ID] = true
			continue
		}
		kept = append(kept, x)
	}
	c.XS = kept
	if n := len(c.XS); n > 0 && c.XS[n-1].Interpolated {
		c.XS[n-1].Interpolated = false
		promoted = true
	}

	if len(c.RightSpine) > 0 && len(c.XS) > 0 {
		end := c.XS[len(c.XS)-1].RightCell
		for i, id := range c.RightSpine {
			if id == end {
				c.RightSpine = c.RightSpine[:i+1]
				c.RightSpinePoints = c.RightSpinePoints[:i+1]
				break
			}
		}
	}

	interior := c.Interior[:0]
	for _, ic := range c.Interior {
		if !gone[ic.XSID] {
			interior = append(interior, ic)
		}
	}
	c.Interior = interior

	c.RebuildDistances()
	return len(gone), promoted
}

func clone(c *channel.Channel) *channel.Channel {
	out := *c
	out.Spine = append([]int64(nil), c.Spine...)
	out.SpinePoints = append(geometry.Polyline(nil), c.SpinePoints...)
	out.LeftLine = append(geometry.Polyline(nil), c.LeftLine...)
	out.RightSpine = append([]int64(nil), c.RightSpine...)
	out.RightSpinePoints = append(geometry.Polyline(nil), c.RightSpinePoints...)
	out.XS = append([]channel.SchematicXS(nil), c.XS...)
	out.Interior = append([]channel.InteriorCell(nil), c.Interior...)
	out.Distances = append([]channel.DistanceRow(nil), c.Distances...)
	return &out
}
