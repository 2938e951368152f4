package xsec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/model"
)

func TestTypeSignature(t *testing.T) {
	sig := TypeSignature()
	assert.Equal(t, []string{"bankell", "bankelr", "fcw", "fcd"}, sig[Rectangular])
	assert.Equal(t, []string{"bankell", "bankelr", "fcw", "fcd", "zl", "zr"}, sig[Trapezoidal])
	assert.Equal(t, []string{
		"bankell", "bankelr", "fcd",
		"a1", "a2", "b1", "b2", "c1", "c2", "excdep",
		"a11", "a22", "b11", "b22", "c11", "c22",
	}, sig[Variable])
	assert.Equal(t, []string{"xi", "yi"}, sig[Natural])

	// callers get a copy
	sig[Rectangular][0] = "mutated"
	assert.Equal(t, "bankell", TypeSignature()[Rectangular][0])
}

func TestParseType(t *testing.T) {
	ty, err := ParseType(" t ")
	require.NoError(t, err)
	assert.Equal(t, Trapezoidal, ty)

	_, err = ParseType("X")
	require.Error(t, err)
}

func TestSetParametricValues(t *testing.T) {
	x, err := New(1, "XS1", Rectangular, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, x.ParametricValues())

	require.NoError(t, x.SetParametricValues([]float64{100.5, 101, 20, 3}))
	v, ok := x.Param("fcw")
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	err = x.SetParametricValues([]float64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 4 values")

	require.NoError(t, x.SetParam("bankelr", 99))
	v, _ = x.Param("bankelr")
	assert.Equal(t, 99.0, v)
	require.Error(t, x.SetParam("zl", 2))
}

func TestTypeTransitionClearsData(t *testing.T) {
	x, err := New(1, "XS1", Trapezoidal, nil)
	require.NoError(t, err)
	require.NoError(t, x.SetParametricValues([]float64{1, 2, 3, 4, 5, 6}))

	x.SetType(Natural)
	assert.Nil(t, x.ParametricValues())
	assert.Equal(t, []Station{{0, 0}}, x.Stations())
	require.Error(t, x.SetParametricValues([]float64{1, 2, 3, 4}))

	_, err = x.SetNaturalStations([]Station{{0, 10}, {5, 8}, {10, 10}})
	require.NoError(t, err)

	x.SetType(Rectangular)
	assert.Empty(t, x.Stations())
	assert.Equal(t, []float64{0, 0, 0, 0}, x.ParametricValues())
}

func TestSetNaturalStationsReportsViolations(t *testing.T) {
	x, err := New(4, "XS4", Natural, nil)
	require.NoError(t, err)

	violations, err := x.SetNaturalStations([]Station{{0, 10}, {5, 8}, {5, 7}, {3, 9}})
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, model.KindInvalidParameters, violations[0].Kind)
	assert.Equal(t, int64(4), violations[0].FeatureID)
	// stored as given
	assert.Equal(t, []Station{{0, 10}, {5, 8}, {5, 7}, {3, 9}}, x.Stations())

	_, err = x.SetNaturalStations(nil)
	require.Error(t, err)
}

func TestManning(t *testing.T) {
	x, err := New(1, "XS1", Rectangular, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.04, x.EffectiveManning(0.04))
	require.NoError(t, x.SetManning(0.035))
	assert.Equal(t, 0.035, x.EffectiveManning(0.04))
	require.Error(t, x.SetManning(-1))
}

func TestCatalogRename(t *testing.T) {
	a, _ := New(1, "upper", Rectangular, nil)
	b, _ := New(2, "lower", Rectangular, nil)
	c, _ := New(3, "", Natural, nil)
	cat, err := NewCatalog(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, "XS3", c.Name)

	require.Error(t, cat.Rename(1, "lower"))
	require.NoError(t, cat.Rename(1, "upper-renamed"))
	require.NoError(t, cat.Rename(2, "upper"))
	require.NoError(t, cat.Rename(2, "upper"))
	require.Error(t, cat.Rename(9, "x"))
	require.Error(t, cat.Rename(1, ""))

	got, ok := cat.Get(2)
	require.True(t, ok)
	assert.Equal(t, "upper", got.Name)
	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, int64(1), cat.All()[0].FID)
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	a, _ := New(1, "same", Rectangular, nil)
	b, _ := New(2, "same", Rectangular, nil)
	_, err := NewCatalog(a, b)
	require.Error(t, err)
}

func TestCatalogCloneIsIndependent(t *testing.T) {
	a, _ := New(1, "upper", Rectangular, nil)
	b, _ := New(2, "lower", Natural, nil)
	cat, err := NewCatalog(a, b)
	require.NoError(t, err)

	clone := cat.Clone()
	ca, _ := clone.Get(1)
	require.NoError(t, ca.SetParam("bankell", 12))
	cb, _ := clone.Get(2)
	_, err = cb.SetNaturalStations([]Station{{0, 5}, {10, 1}})
	require.NoError(t, err)
	require.NoError(t, clone.Rename(1, "renamed"))

	v, _ := a.Param("bankell")
	assert.Zero(t, v)
	assert.Equal(t, []Station{{0, 0}}, b.Stations())
	assert.Equal(t, "upper", a.Name)
	require.Error(t, cat.Rename(2, "upper"))
	assert.Len(t, cb.Stations(), 2)
	assert.Equal(t, 2, clone.Len())
}
