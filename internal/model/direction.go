package model

import (
	"fmt"
	"math"
)

// Direction is one of the eight flow directions of a grid cell. The numeric
// values are the FLO-2D direction codes and double as octagon side numbers.
type Direction int

// Direction codes.
const (
	North     Direction = 1
	East      Direction = 2
	South     Direction = 3
	West      Direction = 4
	NorthEast Direction = 5
	SouthEast Direction = 6
	SouthWest Direction = 7
	NorthWest Direction = 8
)

// Directions lists every valid direction in code order.
var Directions = [8]Direction{North, East, South, West, NorthEast, SouthEast, SouthWest, NorthWest}

// OpposingPairs are the four direction pairs that face each other across a
// shared cell boundary.
var OpposingPairs = [4][2]Direction{
	{North, South},
	{East, West},
	{NorthEast, SouthWest},
	{SouthEast, NorthWest},
}

var directionOffsets = map[Direction][2]int{
	North:     {0, 1},
	East:      {1, 0},
	South:     {0, -1},
	West:      {-1, 0},
	NorthEast: {1, 1},
	SouthEast: {1, -1},
	SouthWest: {-1, -1},
	NorthWest: {-1, 1},
}

// ParseDirection validates an integer direction code.
func ParseDirection(code int) (Direction, error) {
	d := Direction(code)
	if !d.Valid() {
		return 0, &FeatureError{Kind: KindInvalidDirection, Message: fmt.Sprintf("direction %d outside 1..8", code)}
	}
	return d, nil
}

// Valid reports whether d is one of the eight direction codes.
func (d Direction) Valid() bool {
	return d >= North && d <= NorthWest
}

// Offset returns the column and row step towards the neighbour in direction d.
// Rows increase northwards.
func (d Direction) Offset() (dx, dy int) {
	o := directionOffsets[d]
	return o[0], o[1]
}

// Opposite returns the direction pointing back across the same boundary.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case NorthEast:
		return SouthWest
	case SouthWest:
		return NorthEast
	case SouthEast:
		return NorthWest
	case NorthWest:
		return SouthEast
	default:
		return 0
	}
}

// Diagonal reports whether d is one of the four diagonal directions.
func (d Direction) Diagonal() bool {
	return d >= NorthEast && d <= NorthWest
}

// Azimuth returns the compass bearing of d in degrees, clockwise from north.
func (d Direction) Azimuth() float64 {
	switch d {
	case North:
		return 0
	case NorthEast:
		return 45
	case East:
		return 90
	case SouthEast:
		return 135
	case South:
		return 180
	case SouthWest:
		return 225
	case West:
		return 270
	case NorthWest:
		return 315
	default:
		return -1
	}
}

// DirectionFromAzimuth returns the direction whose bearing equals az once
// rounded to the nearest multiple of 45 degrees. A non-finite az has no
// direction and yields the invalid code 0.
func DirectionFromAzimuth(az float64) Direction {
	if math.IsNaN(az) || math.IsInf(az, 0) {
		return 0
	}
	step := int(roundHalfUp(normalizeDegrees(az)/45)) % 8
	return [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}[step]
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	case NorthEast:
		return "NE"
	case SouthEast:
		return "SE"
	case SouthWest:
		return "SW"
	case NorthWest:
		return "NW"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// normalizeDegrees maps a finite angle into [0, 360).
func normalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

func roundHalfUp(v float64) float64 {
	f := float64(int(v))
	if v-f >= 0.5 {
		return f + 1
	}
	return f
}
