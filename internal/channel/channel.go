// Package channel pairs left and right bank polylines with user
// cross-sections and derives the schematic cross-sections, cell associations
// and distance table of every channel segment.
package channel

import (
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// WaterSurface is the optional initial water surface of a segment.
type WaterSurface struct {
	IStart    int64   `json:"istart" yaml:"istart"`
	WSELStart float64 `json:"wselstart" yaml:"wselstart"`
	IEnd      int64   `json:"iend" yaml:"iend"`
	WSELEnd   float64 `json:"wselend" yaml:"wselend"`
}

// LeftBank is a user left-bank polyline together with its segment attributes.
type LeftBank struct {
	FID        int64
	Name       string
	Geometry   geometry.Polyline
	DepInitial float64
	FroudC     float64
	RoughAdj   float64
	Isedn      int
	Rank       int
	WSE        *WaterSurface
}

// RightBank is a user right-bank polyline.
type RightBank struct {
	FID      int64
	Geometry geometry.Polyline
}

// Input is everything a channel schematization run reads.
type Input struct {
	Grid           *grid.Grid
	LeftBanks      []LeftBank
	RightBanks     []RightBank
	CrossSections  *xsec.Catalog
	DefaultManning float64
	NoExchange     []int64
	Progress       model.ProgressFunc
}

// SchematicXS is a cross-section snapped to the grid. It is owned by its
// Channel; other records refer to it by (SegmentID, Order) or ID.
type SchematicXS struct {
	ID           int64
	SegmentID    int64
	Order        int
	UserXSFID    int64
	Interpolated bool
	FCN          float64
	XLen         float64
	LeftCell     int64
	RightCell    int64
	Geometry     geometry.Polyline
	SpineIndex   int
}

// InteriorCell associates a cell strictly between the banks of a schematic
// cross-section with its segment.
type InteriorCell struct {
	SegmentID int64
	XSID      int64
	CellID    int64
}

// DistanceRow locates an interpolated cross-section between the surveyed
// cross-sections up (U) and down (L) of it. Right-bank values are nil when
// they cannot be determined.
type DistanceRow struct {
	XSID      int64
	SegmentID int64
	UpID      int64
	LoID      int64
	DistLB    float64
	DistRB    *float64
	TotalLB   float64
	TotalRB   *float64
}

// Channel is one schematized segment.
type Channel struct {
	SegmentID    int64
	Name         string
	LeftBankFID  int64
	RightBankFID int64
	DepInitial   float64
	FroudC       float64
	RoughAdj     float64
	Isedn        int
	Rank         int
	WSE          *WaterSurface

	// Spine holds the left-bank cells from the first to the last surveyed
	// cross-section; Spine[i] is the left cell of the XS at SpineIndex i.
	Spine       []int64
	SpinePoints geometry.Polyline
	// LeftLine is SpinePoints with bank stations inserted as extra vertices.
	LeftLine geometry.Polyline

	RightSpine       []int64
	RightSpinePoints geometry.Polyline

	XS        []SchematicXS
	Interior  []InteriorCell
	Distances []DistanceRow
}

// XSByOrder returns the cross-section with the given 1-based order.
func (c *Channel) XSByOrder(order int) (*SchematicXS, bool) {
	if order < 1 || order > len(c.XS) {
		return nil, false
	}
	return &c.XS[order-1], true
}

// Surveyed counts the cross-sections taken directly from user cross-sections.
func (c *Channel) Surveyed() int {
	n := 0
	for _, x := range c.XS {
		if !x.Interpolated {
			n++
		}
	}
	return n
}

// Result is the output of a channel schematization run.
type Result struct {
	Channels   []*Channel
	NoExchange []int64
	Report     *model.Report
}

// Channel returns the channel with the given segment id.
func (r *Result) Channel(segmentID int64) (*Channel, bool) {
	for _, c := range r.Channels {
		if c.SegmentID == segmentID {
			return c, true
		}
	}
	return nil, false
}
