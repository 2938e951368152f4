package model

import "errors"

// ProgressFunc receives progress notifications from long-running operations.
// Implementations must not mutate schematization state.
type ProgressFunc func(percent float64, message string)

// Report is the outcome of one schematization run.
type Report struct {
	RunID     string         `json:"run_id,omitempty"`
	Kind      string         `json:"kind"`
	OK        bool           `json:"ok"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Skipped   int            `json:"skipped_count"`
	Errors    []FeatureError `json:"errors,omitempty"`
	Warnings  []FeatureError `json:"warnings,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// NewReport returns an empty successful report.
func NewReport(kind string) *Report {
	return &Report{Kind: kind, OK: true, Counts: map[string]int{}}
}

// Skip records a per-feature failure and counts the skipped feature.
func (r *Report) Skip(fe FeatureError) {
	r.Skipped++
	r.Errors = append(r.Errors, fe)
}

// Warn records a non-blocking finding.
func (r *Report) Warn(fe FeatureError) {
	r.Warnings = append(r.Warnings, fe)
}

// Add increments the named counter.
func (r *Report) Add(name string, n int) {
	if r.Counts == nil {
		r.Counts = map[string]int{}
	}
	r.Counts[name] += n
}

// Merge folds other into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	for k, v := range other.Counts {
		r.Add(k, v)
	}
	if !other.OK {
		r.OK = false
	}
	if other.Cancelled {
		r.Cancelled = true
	}
}

// Fail marks the report as failed because of err. Cancellation is recorded
// separately from feature failures.
func (r *Report) Fail(err error) {
	r.OK = false
	if IsCancelled(err) {
		r.Cancelled = true
		return
	}
	var fe *FeatureError
	if errors.As(err, &fe) {
		r.Errors = append(r.Errors, *fe)
		return
	}
	r.Errors = append(r.Errors, FeatureError{Kind: "internal", Message: err.Error()})
}
