package project

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// Layer file names inside a shapefile project directory. Only the grid is
// required.
const (
	LayerGrid          = "grid.shp"
	LayerLeftBanks     = "left_bank.shp"
	LayerRightBanks    = "right_bank.shp"
	LayerCrossSections = "user_xsec.shp"
	LayerNoExchange    = "noexchange.shp"
	LayerLeveeLines    = "levee_lines.shp"
	LayerLeveePolygons = "levee_polygons.shp"
	LayerFloodplain    = "fpxsec.shp"
)

// LoadShapefiles reads a project from a directory of shapefiles. Grid cells
// are polygons or points with fid and elevation fields; a non-positive
// cellSize is taken from the first cell polygon.
func LoadShapefiles(ctx context.Context, dir string, cellSize float64) (*Project, error) {
	p := &Project{}
	var err error
	if p.Grid, err = loadGrid(filepath.Join(dir, LayerGrid), cellSize); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	path := func(name string) string { return filepath.Join(dir, name) }

	g.Go(func() error {
		var err error
		p.LeftBanks, err = loadLeftBanks(gctx, path(LayerLeftBanks))
		return err
	})
	g.Go(func() error {
		var err error
		p.RightBanks, err = loadRightBanks(gctx, path(LayerRightBanks))
		return err
	})
	g.Go(func() error {
		var err error
		p.CrossSections, err = loadCrossSections(gctx, path(LayerCrossSections))
		return err
	})
	g.Go(func() error {
		var err error
		p.NoExchange, err = loadNoExchange(gctx, path(LayerNoExchange), p.Grid)
		return err
	})
	g.Go(func() error {
		var err error
		p.LeveeLines, err = loadLeveeLines(gctx, path(LayerLeveeLines))
		return err
	})
	g.Go(func() error {
		var err error
		p.LeveePolygons, err = loadLeveePolygons(gctx, path(LayerLeveePolygons))
		return err
	})
	g.Go(func() error {
		var err error
		p.Floodplain, err = loadFloodplain(gctx, path(LayerFloodplain))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("project: loaded shapefiles",
		zap.String("dir", dir),
		zap.Int("cells", p.Grid.Len()),
		zap.Int("left_banks", len(p.LeftBanks)),
		zap.Int("cross_sections", p.CrossSections.Len()),
		zap.Int("levee_lines", len(p.LeveeLines)),
		zap.Int("fpxs", len(p.Floodplain)),
	)
	return p, nil
}

// record is the current feature of a layer with its attributes by lowercase
// field name.
type record struct {
	layer string
	shape shp.Shape
	attrs map[string]string
}

func (r record) str(name string) string { return r.attrs[name] }

func (r record) int(name string) (int64, error) {
	v := r.attrs[name]
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, eris.Errorf("project: %s field %s: invalid integer %q", r.layer, name, v)
	}
	return int64(f), nil
}

func (r record) float(name string) (float64, error) {
	v, err := r.optFloat(name)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

// optFloat returns nil for an empty or missing field.
func (r record) optFloat(name string) (*float64, error) {
	v := r.attrs[name]
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, eris.Errorf("project: %s field %s: invalid number %q", r.layer, name, v)
	}
	return &f, nil
}

func (r record) fid() (int64, error) {
	fid, err := r.int("fid")
	if err != nil {
		return 0, err
	}
	if fid == 0 {
		return 0, eris.Errorf("project: %s feature without fid", r.layer)
	}
	return fid, nil
}

func (r record) line() (geometry.Polyline, error) {
	var pts []shp.Point
	var parts []int32
	switch s := r.shape.(type) {
	case *shp.PolyLine:
		pts, parts = s.Points, s.Parts
	case *shp.Polygon:
		pts, parts = s.Points, s.Parts
	case *shp.Point:
		return geometry.Polyline{{X: s.X, Y: s.Y}}, nil
	default:
		return nil, eris.Errorf("project: %s: unsupported shape %T", r.layer, r.shape)
	}
	end := len(pts)
	if len(parts) > 1 {
		end = int(parts[1])
		zap.L().Warn("project: multipart feature, using first part", zap.String("layer", r.layer))
	}
	out := make(geometry.Polyline, 0, end)
	for _, p := range pts[:end] {
		out = append(out, geometry.Point{X: p.X, Y: p.Y})
	}
	return out, nil
}

// readLayer calls fn for every feature of the layer at path. A missing file
// is an empty layer.
func readLayer(ctx context.Context, path string, fn func(record) error) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	reader, err := shp.Open(path)
	if err != nil {
		return eris.Wrapf(err, "project: open shapefile %s", path)
	}
	defer reader.Close() //nolint:errcheck

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	layer := filepath.Base(path)
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return model.ErrCancelled
		}
		_, shape := reader.Shape()
		rec := record{layer: layer, shape: shape, attrs: make(map[string]string, len(names))}
		for i, name := range names {
			rec.attrs[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil {
		return eris.Wrapf(err, "project: read shapefile %s", path)
	}
	return nil
}

func loadGrid(path string, cellSize float64) (*grid.Grid, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, model.NewPrecondition(model.KindMissingLayer, 0, "grid layer %s: %v", path, err)
	}
	var cells []grid.Cell
	err := readLayer(context.Background(), path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		elev, err := r.float("elevation")
		if err != nil {
			return err
		}
		c := grid.Cell{ID: fid, Elevation: elev}
		switch s := r.shape.(type) {
		case *shp.Polygon:
			c.X, c.Y = (s.MinX+s.MaxX)/2, (s.MinY+s.MaxY)/2
			if cellSize <= 0 {
				cellSize = s.MaxX - s.MinX
			}
		case *shp.Point:
			c.X, c.Y = s.X, s.Y
		default:
			return eris.Errorf("project: grid cell %d: unsupported shape %T", fid, r.shape)
		}
		cells = append(cells, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	g, err := grid.New(cellSize, cells)
	if err != nil {
		return nil, eris.Wrap(err, "project: grid")
	}
	return g, nil
}

func loadLeftBanks(ctx context.Context, path string) ([]channel.LeftBank, error) {
	var out []channel.LeftBank
	err := readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		pl, err := r.line()
		if err != nil {
			return err
		}
		lb := channel.LeftBank{FID: fid, Name: r.str("name"), Geometry: pl}
		if lb.DepInitial, err = r.float("depinitial"); err != nil {
			return err
		}
		if lb.FroudC, err = r.float("froudc"); err != nil {
			return err
		}
		if lb.RoughAdj, err = r.float("roughadj"); err != nil {
			return err
		}
		isedn, err := r.int("isedn")
		if err != nil {
			return err
		}
		rank, err := r.int("rank")
		if err != nil {
			return err
		}
		lb.Isedn, lb.Rank = int(isedn), int(rank)

		istart, err := r.int("istart")
		if err != nil {
			return err
		}
		if istart > 0 {
			wse := &channel.WaterSurface{IStart: istart}
			if wse.IEnd, err = r.int("iend"); err != nil {
				return err
			}
			if wse.WSELStart, err = r.float("wselstart"); err != nil {
				return err
			}
			if wse.WSELEnd, err = r.float("wselend"); err != nil {
				return err
			}
			lb.WSE = wse
		}
		out = append(out, lb)
		return nil
	})
	return out, err
}

func loadRightBanks(ctx context.Context, path string) ([]channel.RightBank, error) {
	var out []channel.RightBank
	err := readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		pl, err := r.line()
		if err != nil {
			return err
		}
		out = append(out, channel.RightBank{FID: fid, Geometry: pl})
		return nil
	})
	return out, err
}

// loadCrossSections reads user cross-sections. Parametric values come from
// fields named after the type signature; natural stations from a stations
// field of "x,y;x,y" pairs.
func loadCrossSections(ctx context.Context, path string) (*xsec.Catalog, error) {
	cat, err := xsec.NewCatalog()
	if err != nil {
		return nil, err
	}
	err = readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		pl, err := r.line()
		if err != nil {
			return err
		}
		t := xsec.Rectangular
		if v := r.str("type"); v != "" {
			if t, err = xsec.ParseType(v); err != nil {
				return eris.Wrapf(err, "project: cross-section %d", fid)
			}
		}
		x, err := xsec.New(fid, r.str("name"), t, pl)
		if err != nil {
			return err
		}
		n, err := r.float("n")
		if err != nil {
			return err
		}
		if err := x.SetManning(n); err != nil {
			return err
		}
		if t.Parametric() {
			for _, name := range xsec.TypeSignature()[t] {
				v, err := r.optFloat(name)
				if err != nil {
					return err
				}
				if v != nil {
					if err := x.SetParam(name, *v); err != nil {
						return err
					}
				}
			}
		} else if s := r.str("stations"); s != "" {
			stations, err := parseStations(s)
			if err != nil {
				return eris.Wrapf(err, "project: cross-section %d", fid)
			}
			violations, err := x.SetNaturalStations(stations)
			if err != nil {
				return err
			}
			for _, v := range violations {
				zap.L().Warn("project: station order", zap.Int64("fid", fid), zap.String("detail", v.Message))
			}
		}
		return cat.Add(x)
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func parseStations(s string) ([]xsec.Station, error) {
	var out []xsec.Station
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xy := strings.Split(pair, ",")
		if len(xy) != 2 {
			return nil, eris.Errorf("station %q is not x,y", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "station %q", pair)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "station %q", pair)
		}
		out = append(out, xsec.Station{X: x, Y: y})
	}
	return out, nil
}

// loadNoExchange maps no-exchange points onto the cells that contain them.
func loadNoExchange(ctx context.Context, path string, g *grid.Grid) ([]int64, error) {
	var out []int64
	err := readLayer(ctx, path, func(r record) error {
		pl, err := r.line()
		if err != nil {
			return err
		}
		for _, p := range pl {
			id, ok := g.CellAt(p)
			if !ok {
				zap.L().Warn("project: no-exchange point outside grid", zap.Float64("x", p.X), zap.Float64("y", p.Y))
				continue
			}
			out = append(out, id)
		}
		return nil
	})
	return out, err
}

func loadLeveeLines(ctx context.Context, path string) ([]levee.Line, error) {
	var out []levee.Line
	err := readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		pl, err := r.line()
		if err != nil {
			return err
		}
		l := levee.Line{FID: fid, Geometry: pl}
		for name, dst := range map[string]**float64{
			"elev": &l.Elev, "correction": &l.Correction, "failelev": &l.FailElev, "faildepth": &l.FailDepth,
		} {
			if *dst, err = r.optFloat(name); err != nil {
				return err
			}
		}
		// dBase limits field names to ten characters.
		for name, dst := range map[string]*float64{
			"failtime": &l.Failure.FailTime, "levbase": &l.Failure.LevBase, "failwidmax": &l.Failure.FailWidthMax,
			"failrate": &l.Failure.FailRate, "failwidrat": &l.Failure.FailWidRate,
		} {
			if *dst, err = r.float(name); err != nil {
				return err
			}
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

func loadLeveePolygons(ctx context.Context, path string) ([]levee.Polygon, error) {
	var out []levee.Polygon
	err := readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		ring, err := r.line()
		if err != nil {
			return err
		}
		p := levee.Polygon{FID: fid, Ring: ring}
		if p.Elev, err = r.optFloat("elev"); err != nil {
			return err
		}
		if p.Correction, err = r.optFloat("correction"); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func loadFloodplain(ctx context.Context, path string) ([]fpxs.Line, error) {
	var out []fpxs.Line
	err := readLayer(ctx, path, func(r record) error {
		fid, err := r.fid()
		if err != nil {
			return err
		}
		pl, err := r.line()
		if err != nil {
			return err
		}
		iflo, err := r.int("iflo")
		if err != nil {
			return err
		}
		out = append(out, fpxs.Line{FID: fid, Name: r.str("name"), Geometry: pl, Iflo: model.Direction(iflo)})
		return nil
	})
	return out, err
}
