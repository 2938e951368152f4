package elevation

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// EffectiveLine clips a cross-section to the part between its first crossing
// with the left bank and its first crossing with the right bank, oriented
// from the left bank. Without a right bank the line runs from the left bank
// crossing to the end of the cross-section.
func EffectiveLine(xs, left, right geometry.Polyline) (geometry.Polyline, error) {
	lh := geometry.Intersections(xs, left)
	if len(lh) == 0 {
		return nil, eris.New("elevation: cross-section does not cross its left bank")
	}
	from := lh[0].AlongA
	to := xs.Length()
	if len(right) >= 2 {
		rh := geometry.Intersections(xs, right)
		if len(rh) == 0 {
			return nil, eris.New("elevation: cross-section does not cross its right bank")
		}
		to = rh[0].AlongA
	}
	if math.Abs(to-from) <= geometry.Eps {
		return nil, eris.New("elevation: cross-section collapses between its banks")
	}
	line := xs.Substring(from, to)
	if to < from {
		line = line.Reverse()
	}
	return line, nil
}

// SampleProfile samples s along line every step and at every vertex.
// Stations start at 0 and increase. Points without a value are left out and
// counted in missing.
func SampleProfile(s Sampler, line geometry.Polyline, step float64) (stations []xsec.Station, missing int) {
	if len(line) < 2 {
		return nil, 0
	}
	length := line.Length()
	at := line.VertexDistances()
	if step > 0 {
		for d := step; d < length-geometry.Eps; d += step {
			at = append(at, d)
		}
	}
	sort.Float64s(at)

	last := math.Inf(-1)
	for _, d := range at {
		if d-last <= geometry.Eps {
			continue
		}
		last = d
		v, ok := s.Sample(line.Interpolate(d))
		if !ok {
			missing++
			continue
		}
		stations = append(stations, xsec.Station{X: d, Y: v})
	}
	return stations, missing
}

// SampleBankElevations samples the two ends of line and writes them to the
// bankell and bankelr values of a parametric cross-section.
func SampleBankElevations(s Sampler, x *xsec.CrossSection, line geometry.Polyline) (left, right float64, err error) {
	if len(line) < 2 {
		return 0, 0, &model.FeatureError{FeatureID: x.FID, Kind: model.KindDegenerateGeometry, Message: "no effective line"}
	}
	left, lok := s.Sample(line.Start())
	right, rok := s.Sample(line.End())
	if !lok || !rok {
		return 0, 0, &model.FeatureError{FeatureID: x.FID, Kind: model.KindSampleFailed,
			Message: "no elevation at a bank end of " + x.Describe()}
	}
	if err := x.SetParam("bankell", left); err != nil {
		return 0, 0, err
	}
	if err := x.SetParam("bankelr", right); err != nil {
		return 0, 0, err
	}
	return left, right, nil
}

// Input is what Enrich reads: the user cross-sections and the bank lines
// keyed by fid.
type Input struct {
	Sampler       Sampler
	CrossSections *xsec.Catalog
	LeftBanks     map[int64]geometry.Polyline
	RightBanks    map[int64]geometry.Polyline
	Step          float64
}

// Enrich samples every cross-section that crosses a left bank: natural
// sections get a station profile, parametric ones their bank elevations.
// Failures are reported per cross-section.
func Enrich(ctx context.Context, in Input) (*model.Report, error) {
	report := model.NewReport("elevation")
	if in.Sampler == nil || in.CrossSections == nil {
		return report, nil
	}
	lefts := sortedKeys(in.LeftBanks)
	rights := sortedKeys(in.RightBanks)

	for _, x := range in.CrossSections.All() {
		if err := ctx.Err(); err != nil {
			return nil, model.ErrCancelled
		}
		left := firstCrossing(x.Geometry, lefts, in.LeftBanks)
		if left == nil {
			continue
		}
		right := firstCrossing(x.Geometry, rights, in.RightBanks)

		line, err := EffectiveLine(x.Geometry, left, right)
		if err != nil {
			skip(report, x, model.KindNoIntersection, err.Error())
			continue
		}

		if x.Type() == xsec.Natural {
			stations, missing := SampleProfile(in.Sampler, line, in.Step)
			if len(stations) == 0 {
				skip(report, x, model.KindSampleFailed, "no elevation along the cross-section")
				continue
			}
			if missing > 0 {
				report.Warn(model.NewFeatureError(model.KindSampleFailed, x.FID, "%d profile points without elevation", missing))
			}
			violations, err := x.SetNaturalStations(stations)
			if err != nil {
				skip(report, x, model.KindInvalidParameters, err.Error())
				continue
			}
			for _, v := range violations {
				report.Warn(v)
			}
			report.Add("profiles", 1)
			continue
		}

		if _, _, err := SampleBankElevations(in.Sampler, x, line); err != nil {
			var fe *model.FeatureError
			if errors.As(err, &fe) {
				skip(report, x, fe.Kind, fe.Message)
			} else {
				skip(report, x, model.KindInvalidParameters, err.Error())
			}
			continue
		}
		report.Add("bank_elevations", 1)
	}
	return report, nil
}

func skip(report *model.Report, x *xsec.CrossSection, kind model.Kind, msg string) {
	report.Skip(model.NewFeatureError(kind, x.FID, "%s", msg))
	zap.L().Warn("elevation: cross-section not sampled",
		zap.Int64("xs_fid", x.FID), zap.String("kind", string(kind)), zap.String("reason", msg))
}

func firstCrossing(xs geometry.Polyline, order []int64, banks map[int64]geometry.Polyline) geometry.Polyline {
	for _, fid := range order {
		if geometry.Intersects(xs, banks[fid]) {
			return banks[fid]
		}
	}
	return nil
}

func sortedKeys(m map[int64]geometry.Polyline) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
