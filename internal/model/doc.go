// Package model defines the data that flows through one css reduction run.
//
// A run starts from a TargetReference supplied by the caller, fetches the
// page it names, collects the stylesheets linked from that page and purges
// every rule the page markup cannot reach. The types here carry that data
// between pipeline steps:
//
//   - Target: a normalized, secure-scheme URL built from a bare host
//   - Page: the fetched HTML and its parsed document tree
//   - StylesheetAsset: one downloaded stylesheet with its source identifier
//   - PurgeResult: the purged text and byte counts for one asset
//   - Run: the mutable state of a single pipeline execution
//   - Result: the externally visible output of a run
//
// Nothing in this package outlives a run.
package model
