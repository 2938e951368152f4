package project

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/datfile"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// Document is the YAML form of a project. Geometry is WKT.
type Document struct {
	Grid          GridDoc           `yaml:"grid"`
	LeftBanks     []LeftBankDoc     `yaml:"left_banks"`
	RightBanks    []RightBankDoc    `yaml:"right_banks"`
	CrossSections []CrossSectionDoc `yaml:"cross_sections"`
	NoExchange    []int64           `yaml:"no_exchange"`
	Levees        []LeveeDoc        `yaml:"levees"`
	LeveePolygons []PolygonDoc      `yaml:"levee_polygons"`
	Floodplain    []FloodplainDoc   `yaml:"floodplain_xs"`
}

// GridDoc lists cells inline or points at a TOPO.DAT file relative to the
// document.
type GridDoc struct {
	CellSize float64     `yaml:"cellsize"`
	Topo     string      `yaml:"topo"`
	Cells    []grid.Cell `yaml:"cells"`
}

// LeftBankDoc is a left bank with its segment attributes.
type LeftBankDoc struct {
	FID        int64                 `yaml:"fid"`
	Name       string                `yaml:"name"`
	Geom       string                `yaml:"geom"`
	DepInitial float64               `yaml:"depinitial"`
	FroudC     float64               `yaml:"froudc"`
	RoughAdj   float64               `yaml:"roughadj"`
	Isedn      int                   `yaml:"isedn"`
	Rank       int                   `yaml:"rank"`
	WSE        *channel.WaterSurface `yaml:"wse"`
}

// RightBankDoc is a right bank line.
type RightBankDoc struct {
	FID  int64  `yaml:"fid"`
	Geom string `yaml:"geom"`
}

// CrossSectionDoc is a user cross-section. Params are keyed by the type
// signature names.
type CrossSectionDoc struct {
	FID      int64              `yaml:"fid"`
	Name     string             `yaml:"name"`
	Type     string             `yaml:"type"`
	Manning  float64            `yaml:"manning"`
	Params   map[string]float64 `yaml:"params"`
	Stations []xsec.Station     `yaml:"stations"`
	Geom     string             `yaml:"geom"`
}

// LeveeDoc is a levee line.
type LeveeDoc struct {
	FID        int64               `yaml:"fid"`
	Geom       string              `yaml:"geom"`
	Elev       *float64            `yaml:"elev"`
	Correction *float64            `yaml:"correction"`
	FailElev   *float64            `yaml:"fail_elev"`
	FailDepth  *float64            `yaml:"fail_depth"`
	Failure    levee.FailureParams `yaml:"failure"`
}

// PolygonDoc is a levee crest polygon.
type PolygonDoc struct {
	FID        int64    `yaml:"fid"`
	Geom       string   `yaml:"geom"`
	Elev       *float64 `yaml:"elev"`
	Correction *float64 `yaml:"correction"`
}

// FloodplainDoc is a floodplain cross-section line; iflo 0 means unset.
type FloodplainDoc struct {
	FID  int64  `yaml:"fid"`
	Name string `yaml:"name"`
	Geom string `yaml:"geom"`
	Iflo int    `yaml:"iflo"`
}

// LoadYAML reads a project document from path.
func LoadYAML(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "project: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadYAML(f, filepath.Dir(path))
}

// ReadYAML decodes a project document. baseDir resolves a relative TOPO.DAT
// path.
func ReadYAML(r io.Reader, baseDir string) (*Project, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "project: decode yaml")
	}
	return doc.Project(baseDir)
}

// Project converts the document into schematizer inputs.
func (d *Document) Project(baseDir string) (*Project, error) {
	p := &Project{NoExchange: append([]int64(nil), d.NoExchange...)}

	var err error
	switch {
	case d.Grid.Topo != "":
		path := d.Grid.Topo
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		p.Grid, err = datfile.OpenTopo(path, d.Grid.CellSize)
	case len(d.Grid.Cells) > 0:
		p.Grid, err = grid.New(d.Grid.CellSize, d.Grid.Cells)
	}
	if err != nil {
		return nil, eris.Wrap(err, "project: grid")
	}

	for _, lb := range d.LeftBanks {
		pl, err := parseLine(lb.Geom, "left bank", lb.FID)
		if err != nil {
			return nil, err
		}
		p.LeftBanks = append(p.LeftBanks, channel.LeftBank{
			FID: lb.FID, Name: lb.Name, Geometry: pl,
			DepInitial: lb.DepInitial, FroudC: lb.FroudC, RoughAdj: lb.RoughAdj,
			Isedn: lb.Isedn, Rank: lb.Rank, WSE: lb.WSE,
		})
	}
	for _, rb := range d.RightBanks {
		pl, err := parseLine(rb.Geom, "right bank", rb.FID)
		if err != nil {
			return nil, err
		}
		p.RightBanks = append(p.RightBanks, channel.RightBank{FID: rb.FID, Geometry: pl})
	}

	if p.CrossSections, err = xsec.NewCatalog(); err != nil {
		return nil, err
	}
	for _, xd := range d.CrossSections {
		x, err := xd.crossSection()
		if err != nil {
			return nil, err
		}
		if err := p.CrossSections.Add(x); err != nil {
			return nil, eris.Wrap(err, "project: cross-sections")
		}
	}

	for _, ld := range d.Levees {
		pl, err := parseLine(ld.Geom, "levee", ld.FID)
		if err != nil {
			return nil, err
		}
		p.LeveeLines = append(p.LeveeLines, levee.Line{
			FID: ld.FID, Geometry: pl, Elev: ld.Elev, Correction: ld.Correction,
			FailElev: ld.FailElev, FailDepth: ld.FailDepth, Failure: ld.Failure,
		})
	}
	for _, pd := range d.LeveePolygons {
		ring, err := parseLine(pd.Geom, "levee polygon", pd.FID)
		if err != nil {
			return nil, err
		}
		p.LeveePolygons = append(p.LeveePolygons, levee.Polygon{FID: pd.FID, Ring: ring, Elev: pd.Elev, Correction: pd.Correction})
	}
	for _, fd := range d.Floodplain {
		pl, err := parseLine(fd.Geom, "floodplain cross-section", fd.FID)
		if err != nil {
			return nil, err
		}
		p.Floodplain = append(p.Floodplain, fpxs.Line{FID: fd.FID, Name: fd.Name, Geometry: pl, Iflo: model.Direction(fd.Iflo)})
	}
	return p, nil
}

func (xd CrossSectionDoc) crossSection() (*xsec.CrossSection, error) {
	t := xsec.Rectangular
	if xd.Type != "" {
		var err error
		if t, err = xsec.ParseType(xd.Type); err != nil {
			return nil, eris.Wrapf(err, "project: cross-section %d", xd.FID)
		}
	}
	pl, err := parseLine(xd.Geom, "cross-section", xd.FID)
	if err != nil {
		return nil, err
	}
	x, err := xsec.New(xd.FID, xd.Name, t, pl)
	if err != nil {
		return nil, err
	}
	if err := x.SetManning(xd.Manning); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(xd.Params))
	for name := range xd.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := x.SetParam(name, xd.Params[name]); err != nil {
			return nil, eris.Wrapf(err, "project: cross-section %d", xd.FID)
		}
	}
	if len(xd.Stations) > 0 {
		if _, err := x.SetNaturalStations(xd.Stations); err != nil {
			return nil, eris.Wrapf(err, "project: cross-section %d", xd.FID)
		}
	}
	return x, nil
}

func parseLine(s, what string, fid int64) (geometry.Polyline, error) {
	pl, err := geometry.ParseWKT(s)
	if err != nil {
		return nil, eris.Wrapf(err, "project: %s %d", what, fid)
	}
	return pl, nil
}
