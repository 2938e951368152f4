package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionOpposite(t *testing.T) {
	for _, pair := range OpposingPairs {
		assert.Equal(t, pair[1], pair[0].Opposite())
		assert.Equal(t, pair[0], pair[1].Opposite())
	}
	assert.Equal(t, Direction(0), Direction(9).Opposite())
}

func TestDirectionOffsetsCancel(t *testing.T) {
	for _, d := range Directions {
		dx, dy := d.Offset()
		ox, oy := d.Opposite().Offset()
		assert.Equal(t, 0, dx+ox, d.String())
		assert.Equal(t, 0, dy+oy, d.String())
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(5)
	require.NoError(t, err)
	assert.Equal(t, NorthEast, d)

	_, err = ParseDirection(0)
	require.Error(t, err)
	var fe *FeatureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindInvalidDirection, fe.Kind)
}

func TestDirectionFromAzimuth(t *testing.T) {
	tests := []struct {
		az   float64
		want Direction
	}{
		{0, North},
		{22, North},
		{23, NorthEast},
		{47, NorthEast},
		{90, East},
		{181, South},
		{-45, NorthWest},
		{350, North},
		{292.6, NorthWest},
		{-1e-15, North},
		{720 + 90, East},
		{-3600 - 90, West},
		{360e6 + 90, East},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectionFromAzimuth(tt.az), "azimuth %v", tt.az)
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-360, 0},
		{-90, 270},
		{450, 90},
		{-1e-15, 0},
		{1e6 + 45, math.Mod(1e6+45, 360)},
	}
	for _, tt := range tests {
		got := normalizeDegrees(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "angle %v", tt.in)
		assert.True(t, got >= 0 && got < 360, "angle %v", tt.in)
	}
}

func TestDirectionAzimuthRoundTrip(t *testing.T) {
	for _, d := range Directions {
		assert.Equal(t, d, DirectionFromAzimuth(d.Azimuth()))
	}
}

func TestReportFail(t *testing.T) {
	r := NewReport("channels")
	r.Fail(NewPrecondition(KindFirstXSNotInFirstCell, 3, "left bank %d", 3))
	assert.False(t, r.OK)
	assert.False(t, r.Cancelled)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, KindFirstXSNotInFirstCell, r.Errors[0].Kind)

	c := NewReport("levees")
	c.Fail(ErrCancelled)
	assert.True(t, c.Cancelled)
	assert.Empty(t, c.Errors)
}

func TestReportMerge(t *testing.T) {
	a := NewReport("all")
	b := NewReport("levees")
	b.Skip(NewFeatureError(KindDegenerateGeometry, 7, "zero length"))
	b.Add("levee_data", 4)
	a.Merge(b)
	assert.Equal(t, 1, a.Skipped)
	assert.Equal(t, 4, a.Counts["levee_data"])
	assert.True(t, a.OK)
}
