// Package pipeline runs the fetch, extract, download, purge and aggregate
// steps for a target.
//
// A Pipeline executes Steps in order and drives the run's state machine:
// each step owns one model.State and the run only ever moves forward.
// Execution is fail-fast; the first fatal error moves the run to
// model.StateFailed and nothing else runs.
//
// Runner wraps a Pipeline with everything a complete run needs: target
// normalization, the per-site configuration, the run deadline and a
// dedicated workspace that is released on every exit path.
//
// BatchProcessor runs several targets concurrently with errgroup. Runs in
// a batch share no state, so a failing target never affects the others.
package pipeline
