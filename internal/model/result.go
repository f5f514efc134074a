package model

import "time"

// Result is the output of a successful run.
// Only ReductionFactor and CSS are part of the wire contract; the remaining
// fields feed human readable reports.
type Result struct {
	// ReductionFactor is the run's ReductionMetric.
	ReductionFactor float64 `json:"reductionFactor"`

	// CSS is the concatenated purged css.
	CSS string `json:"css"`

	// RunID identifies the run that produced this result.
	RunID string `json:"-"`

	// Target is the normalized target URL.
	Target string `json:"-"`

	// Stylesheets holds the per-stylesheet purge outcomes.
	Stylesheets []PurgeResult `json:"-"`

	// Skipped lists stylesheet references that were excluded.
	Skipped []SkippedStylesheet `json:"-"`

	// Diagnostics holds the recoverable errors of the run, one per item.
	Diagnostics []string `json:"-"`

	// Elapsed is the run duration.
	Elapsed time.Duration `json:"-"`
}

// OriginalSize returns the total raw stylesheet size in bytes.
func (r *Result) OriginalSize() int {
	total := 0
	for _, s := range r.Stylesheets {
		total += s.OriginalSize
	}
	return total
}

// PurgedSize returns the total purged stylesheet size in bytes.
func (r *Result) PurgedSize() int {
	total := 0
	for _, s := range r.Stylesheets {
		total += s.PurgedSize
	}
	return total
}
