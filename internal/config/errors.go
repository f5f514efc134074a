package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.RequireTargets. Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no target page is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one host or URL")

	// ErrInvalidTimeout is returned when the run timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRequestTimeout is returned when the per-request timeout is not positive.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidConcurrency is returned when the download concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid download concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --markdown and --text
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --markdown and --text cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingLogLevels is returned when both --quiet and --verbose are set.
	ErrConflictingLogLevels = errors.New("conflicting log levels: --quiet and --verbose cannot be used together")
)
