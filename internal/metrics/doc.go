// Package metrics exposes csstrim's prometheus metrics.
//
// A Recorder owns its own registry, so several recorders (one per test, or
// one per server) never collide on registration.
package metrics
