package model

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Stager persists intermediate run artifacts to the run's staging area.
// The workspace package provides the implementation.
type Stager interface {
	// StagePage stores the fetched page markup.
	StagePage(html []byte) error

	// StageStylesheet stores one raw stylesheet.
	StageStylesheet(sourceID string, css []byte) error

	// StagePurged stores one purged stylesheet.
	StagePurged(sourceID string, css []byte) error
}

// Run is the mutable state of one pipeline execution.
// A Run is owned by exactly one goroutine at a time and is discarded once
// its Result has been produced.
type Run struct {
	// ID uniquely identifies the run. It also names the staging area.
	ID string

	// Target is the normalized target.
	Target Target

	// State is the current pipeline state.
	State State

	// Transitions lists every state the run entered, in order.
	Transitions []State

	// StartedAt is when the run entered its first state.
	StartedAt time.Time

	// FinishedAt is when the run reached a terminal state.
	FinishedAt time.Time

	// Page is the fetched page, set by the fetching step.
	Page *Page

	// StylesheetLinks are the stylesheet references in document order.
	StylesheetLinks []string

	// Assets are the successfully downloaded stylesheets.
	Assets []StylesheetAsset

	// Skipped lists references that were excluded from the run.
	Skipped []SkippedStylesheet

	// Diagnostics aggregates recoverable per-item errors.
	Diagnostics error

	// Results are the per-asset purge outcomes.
	Results []PurgeResult

	// Reduction is the computed reduction metric.
	Reduction ReductionMetric

	// CSS is the concatenation of every purged stylesheet.
	CSS string

	// Err is the cause of failure when State is StateFailed.
	Err error

	// Workspace is the staging area owned by this run.
	Workspace Stager
}

// NewRun creates a Run in StatePending.
func NewRun(id string, target Target) *Run {
	return &Run{
		ID:          id,
		Target:      target,
		State:       StatePending,
		Transitions: make([]State, 0, int(StateFailed)),
	}
}

// Advance moves the run to next. It refuses backward edges and any move
// out of a terminal state.
func (r *Run) Advance(next State) error {
	if !r.State.CanAdvanceTo(next) {
		return fmt.Errorf("illegal transition %s -> %s", r.State, next)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.State = next
	r.Transitions = append(r.Transitions, next)
	if next.IsTerminal() {
		r.FinishedAt = time.Now()
	}
	return nil
}

// Fail moves the run to StateFailed and records err wrapped in a StageError
// naming the state that failed. The wrapped error is returned.
func (r *Run) Fail(err error) error {
	failed := r.State
	se := &StageError{State: failed, Err: err}
	r.Err = se
	if r.State.CanAdvanceTo(StateFailed) {
		_ = r.Advance(StateFailed) //nolint:errcheck // checked above
	}
	return se
}

// Skip records a reference excluded from the run.
func (r *Run) Skip(href, reason string) {
	r.Skipped = append(r.Skipped, SkippedStylesheet{Href: href, Reason: reason})
}

// Elapsed returns how long the run took, or has taken so far.
func (r *Run) Elapsed() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregate concatenates the purged css of every result in order and
// computes the reduction metric.
func (r *Run) Aggregate() {
	var sb strings.Builder
	for _, res := range r.Results {
		sb.WriteString(res.CSS)
	}
	r.CSS = sb.String()
	r.Reduction = ComputeReduction(r.Results)
}

// Result builds the externally visible result of the run.
func (r *Run) Result() *Result {
	return &Result{
		ReductionFactor: r.Reduction.Float64(),
		CSS:             r.CSS,
		RunID:           r.ID,
		Target:          r.Target.String(),
		Stylesheets:     r.Results,
		Skipped:         r.Skipped,
		Diagnostics:     r.DiagnosticMessages(),
		Elapsed:         r.Elapsed(),
	}
}

// DiagnosticMessages returns one message per recoverable error recorded
// in Diagnostics.
func (r *Run) DiagnosticMessages() []string {
	errs := multierr.Errors(r.Diagnostics)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}
