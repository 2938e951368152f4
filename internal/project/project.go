// Package project loads the user layers of a schematization run from a YAML
// project document or from a directory of ESRI shapefiles.
package project

import (
	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// Project holds every user layer the schematizers read.
type Project struct {
	Grid          *grid.Grid
	LeftBanks     []channel.LeftBank
	RightBanks    []channel.RightBank
	CrossSections *xsec.Catalog
	NoExchange    []int64
	LeveeLines    []levee.Line
	LeveePolygons []levee.Polygon
	Floodplain    []fpxs.Line
}

// ChannelInput assembles the channel schematizer input.
func (p *Project) ChannelInput(defaultManning float64) channel.Input {
	return channel.Input{
		Grid:           p.Grid,
		LeftBanks:      p.LeftBanks,
		RightBanks:     p.RightBanks,
		CrossSections:  p.CrossSections,
		DefaultManning: defaultManning,
		NoExchange:     p.NoExchange,
	}
}

// LeveeInput assembles the levee schematizer input.
func (p *Project) LeveeInput() levee.Input {
	return levee.Input{Grid: p.Grid, Lines: p.LeveeLines, Polygons: p.LeveePolygons}
}

// FloodplainInput assembles the floodplain cross-section input.
func (p *Project) FloodplainInput() fpxs.Input {
	return fpxs.Input{Grid: p.Grid, Lines: p.Floodplain}
}
