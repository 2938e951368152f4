// Package xsec models user cross-sections: parametric rectangular,
// trapezoidal and variable-area sections and natural station profiles.
package xsec

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// Type is the cross-section shape.
type Type string

// Cross-section types.
const (
	Rectangular Type = "R"
	Trapezoidal Type = "T"
	Variable    Type = "V"
	Natural     Type = "N"
)

// signatures holds the ordered parameter names serialized for each type.
var signatures = map[Type][]string{
	Rectangular: {"bankell", "bankelr", "fcw", "fcd"},
	Trapezoidal: {"bankell", "bankelr", "fcw", "fcd", "zl", "zr"},
	Variable: {
		"bankell", "bankelr", "fcd",
		"a1", "a2", "b1", "b2", "c1", "c2", "excdep",
		"a11", "a22", "b11", "b22", "c11", "c22",
	},
	Natural: {"xi", "yi"},
}

// ParseType validates a type letter.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := signatures[t]; !ok {
		return "", eris.Errorf("xsec: unknown cross-section type %q", s)
	}
	return t, nil
}

// Parametric reports whether t stores a single parametric row.
func (t Type) Parametric() bool {
	return t == Rectangular || t == Trapezoidal || t == Variable
}

// TypeSignature returns, for every type, the ordered parameter names used
// for serialization. Natural sections list their station column names.
func TypeSignature() map[Type][]string {
	out := make(map[Type][]string, len(signatures))
	for t, names := range signatures {
		out[t] = append([]string(nil), names...)
	}
	return out
}

// Station is one (station, elevation) pair of a natural cross-section.
type Station struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// CrossSection is a user-digitized cross-section.
type CrossSection struct {
	FID      int64
	Name     string
	Geometry geometry.Polyline
	manning  float64
	typ      Type
	params   []float64
	stations []Station
}

// New returns a cross-section of the given type holding a default data row.
func New(fid int64, name string, t Type, geom geometry.Polyline) (*CrossSection, error) {
	if _, ok := signatures[t]; !ok {
		return nil, eris.Errorf("xsec: unknown cross-section type %q", t)
	}
	x := &CrossSection{FID: fid, Name: name, Geometry: geom}
	x.SetType(t)
	return x, nil
}

// Type returns the cross-section type.
func (x *CrossSection) Type() Type { return x.typ }

// SetType switches the type. Previous parametric or station data is cleared
// and a default row for the new type is created.
func (x *CrossSection) SetType(t Type) {
	x.typ = t
	x.params = nil
	x.stations = nil
	if t == Natural {
		x.stations = []Station{{0, 0}}
		return
	}
	x.params = make([]float64, len(signatures[t]))
}

// Manning returns the stored roughness, zero when unset.
func (x *CrossSection) Manning() float64 { return x.manning }

// EffectiveManning returns the stored roughness or def when unset.
func (x *CrossSection) EffectiveManning(def float64) float64 {
	if x.manning > 0 {
		return x.manning
	}
	return def
}

// SetManning sets the channel roughness. Zero clears it.
func (x *CrossSection) SetManning(n float64) error {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return eris.Errorf("xsec: invalid manning n %v for %q", n, x.Name)
	}
	x.manning = n
	return nil
}

// SetParametricValues replaces the parametric row. The number of values must
// match the type signature.
func (x *CrossSection) SetParametricValues(values []float64) error {
	if !x.typ.Parametric() {
		return eris.Errorf("xsec: %q is type %s and has no parametric row", x.Name, x.typ)
	}
	want := len(signatures[x.typ])
	if len(values) != want {
		return eris.Errorf("xsec: type %s expects %d values, got %d", x.typ, want, len(values))
	}
	x.params = append([]float64(nil), values...)
	return nil
}

// ParametricValues returns a copy of the parametric row in signature order.
func (x *CrossSection) ParametricValues() []float64 {
	return append([]float64(nil), x.params...)
}

// Param returns a named parametric value.
func (x *CrossSection) Param(name string) (float64, bool) {
	i := paramIndex(x.typ, name)
	if i < 0 || i >= len(x.params) {
		return 0, false
	}
	return x.params[i], true
}

// SetParam sets a named parametric value.
func (x *CrossSection) SetParam(name string, v float64) error {
	i := paramIndex(x.typ, name)
	if i < 0 || !x.typ.Parametric() {
		return eris.Errorf("xsec: type %s has no parameter %q", x.typ, name)
	}
	x.params[i] = v
	return nil
}

// SetNaturalStations stores stations in input order and returns the ordering
// violations the solver would reject.
func (x *CrossSection) SetNaturalStations(stations []Station) ([]model.FeatureError, error) {
	if x.typ != Natural {
		return nil, eris.Errorf("xsec: %q is type %s, stations need type N", x.Name, x.typ)
	}
	if len(stations) == 0 {
		return nil, eris.Errorf("xsec: %q needs at least one station", x.Name)
	}
	x.stations = append([]Station(nil), stations...)
	return x.StationViolations(), nil
}

// Stations returns a copy of the natural stations.
func (x *CrossSection) Stations() []Station {
	return append([]Station(nil), x.stations...)
}

// StationViolations lists stations whose x does not strictly increase.
func (x *CrossSection) StationViolations() []model.FeatureError {
	var out []model.FeatureError
	for i := 1; i < len(x.stations); i++ {
		if x.stations[i].X <= x.stations[i-1].X {
			out = append(out, model.NewFeatureError(model.KindInvalidParameters, x.FID,
				"station %d (x=%.4f) does not increase past %.4f", i+1, x.stations[i].X, x.stations[i-1].X))
		}
	}
	return out
}

// Clone returns a deep copy of x.
func (x *CrossSection) Clone() *CrossSection {
	c := *x
	c.Geometry = append(geometry.Polyline(nil), x.Geometry...)
	c.params = append([]float64(nil), x.params...)
	c.stations = append([]Station(nil), x.stations...)
	return &c
}

// Describe returns a short label for logs.
func (x *CrossSection) Describe() string {
	return fmt.Sprintf("%s[%d] %q", x.typ, x.FID, x.Name)
}

func paramIndex(t Type, name string) int {
	for i, n := range signatures[t] {
		if n == name {
			return i
		}
	}
	return -1
}
