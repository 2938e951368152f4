package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies a schematization failure.
type Kind string

// Failure kinds reported to callers.
const (
	KindEmptyGrid               Kind = "empty_grid"
	KindMissingLayer            Kind = "missing_layer"
	KindTooFewCrossSections     Kind = "too_few_cross_sections"
	KindFirstXSNotInFirstCell   Kind = "first_xs_not_in_first_cell"
	KindFirstXSNotInFirstRBCell Kind = "first_xs_not_in_first_rb_cell"
	KindNoIntersection          Kind = "no_intersection"
	KindMultipleIntersections   Kind = "multiple_intersections"
	KindDegenerateGeometry      Kind = "degenerate_geometry"
	KindUnmatchedRightBank      Kind = "unmatched_right_bank"
	KindCrossSectionsTooClose   Kind = "cross_sections_too_close"
	KindCellOutsideGrid         Kind = "cell_outside_grid"
	KindSampleFailed            Kind = "sample_failed"
	KindInvalidDirection        Kind = "invalid_direction"
	KindInvalidParameters       Kind = "invalid_parameters"
	KindNoReceiver              Kind = "no_receiver"
)

// ErrCancelled is returned when a run observes context cancellation. It is
// reported separately from failures.
var ErrCancelled = eris.New("schematization cancelled")

// FeatureError identifies the user feature a failure belongs to.
type FeatureError struct {
	FeatureID    int64  `json:"feature_id"`
	Kind         Kind   `json:"kind"`
	Message      string `json:"message"`
	Precondition bool   `json:"precondition,omitempty"`
}

func (e *FeatureError) Error() string {
	if e.FeatureID != 0 {
		return fmt.Sprintf("%s (feature %d): %s", e.Kind, e.FeatureID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewPrecondition builds an error that aborts the current operation.
func NewPrecondition(kind Kind, featureID int64, format string, args ...any) *FeatureError {
	return &FeatureError{FeatureID: featureID, Kind: kind, Message: fmt.Sprintf(format, args...), Precondition: true}
}

// NewFeatureError builds a per-feature failure that does not abort a run.
func NewFeatureError(kind Kind, featureID int64, format string, args ...any) FeatureError {
	return FeatureError{FeatureID: featureID, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err (or any error in its chain) is a
// precondition failure.
func IsPrecondition(err error) bool {
	var fe *FeatureError
	return errors.As(err, &fe) && fe.Precondition
}

// IsCancelled reports whether err signals cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
