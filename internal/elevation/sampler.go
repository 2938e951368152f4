// Package elevation samples ground elevations from the grid or from a raster
// and derives cross-section profiles and bank elevations.
package elevation

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/dem"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
)

// Sampler returns the elevation at a point. ok is false when no value is
// available there.
type Sampler interface {
	Sample(p geometry.Point) (float64, bool)
}

// Interpolation selects how raster values are read.
type Interpolation string

// Raster interpolation methods.
const (
	Bilinear Interpolation = "bilinear"
	Nearest  Interpolation = "nearest"
)

// ParseInterpolation validates an interpolation name. Empty means bilinear.
func ParseInterpolation(s string) (Interpolation, error) {
	switch Interpolation(strings.ToLower(strings.TrimSpace(s))) {
	case "", Bilinear:
		return Bilinear, nil
	case Nearest:
		return Nearest, nil
	}
	return "", eris.Errorf("elevation: unknown interpolation %q", s)
}

// GridSampler returns the elevation of the cell containing the point.
type GridSampler struct {
	Grid *grid.Grid
}

// Sample implements Sampler.
func (s GridSampler) Sample(p geometry.Point) (float64, bool) {
	id, ok := s.Grid.CellAt(p)
	if !ok {
		return 0, false
	}
	return s.Grid.Elevation(id)
}

// RasterSampler reads a raster, reprojecting query points when the project
// and raster coordinate systems differ.
type RasterSampler struct {
	raster    *dem.Raster
	interp    Interpolation
	transform proj.Transformer
}

// NewRasterSampler returns a sampler over r. sourceProj and rasterProj are
// PROJ.4 strings; when either is empty or both are equal, points are used
// as given.
func NewRasterSampler(r *dem.Raster, interp Interpolation, sourceProj, rasterProj string) (*RasterSampler, error) {
	if r == nil {
		return nil, eris.New("elevation: nil raster")
	}
	s := &RasterSampler{raster: r, interp: interp}
	if sourceProj == "" || rasterProj == "" || strings.TrimSpace(sourceProj) == strings.TrimSpace(rasterProj) {
		return s, nil
	}
	src, err := proj.Parse(sourceProj)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: parse source projection")
	}
	dst, err := proj.Parse(rasterProj)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: parse raster projection")
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: build transform")
	}
	s.transform = t
	return s, nil
}

// Sample implements Sampler.
func (s *RasterSampler) Sample(p geometry.Point) (float64, bool) {
	x, y := p.X, p.Y
	if s.transform != nil {
		var err error
		if x, y, err = s.transform(x, y); err != nil {
			return 0, false
		}
	}
	if s.interp == Nearest {
		return s.raster.Nearest(x, y)
	}
	return s.raster.Bilinear(x, y)
}

// Fallback samples Primary and uses Secondary where Primary has no value.
type Fallback struct {
	Primary, Secondary Sampler
}

// Sample implements Sampler.
func (f Fallback) Sample(p geometry.Point) (float64, bool) {
	if v, ok := f.Primary.Sample(p); ok {
		return v, true
	}
	if f.Secondary == nil {
		return 0, false
	}
	return f.Secondary.Sample(p)
}
