package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/csstrim/internal/model"
)

// JSONWriter outputs results in JSON format.
// By default only the {reductionFactor, css} contract is written, one
// object per line, so the output can be consumed exactly like a response
// of the HTTP server.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// details adds run metadata and per-stylesheet sizes.
	details bool

	// version is reported in detailed output.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithDetails writes a DetailedResult carrying version instead of the
// bare result.
func WithDetails(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.details = true
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result in JSON format.
func (w *JSONWriter) Write(result *model.Result) (int, error) {
	if w.details {
		return w.writeJSON(NewDetailedResult(result, w.version))
	}
	return w.writeJSON(result)
}

// WriteFailure outputs a Failure in JSON format.
func (w *JSONWriter) WriteFailure(target string, err error) (int, error) {
	return w.writeJSON(NewFailure(target, err))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// DetailedResult is a result with run metadata.
type DetailedResult struct {
	// Version is the csstrim version that produced this result.
	Version string `json:"version,omitempty"`

	// RunID identifies the run.
	RunID string `json:"runId"`

	// Target is the normalized target URL.
	Target string `json:"target"`

	// ReductionFactor and CSS mirror model.Result.
	ReductionFactor float64 `json:"reductionFactor"`
	CSS             string  `json:"css"`

	// OriginalBytes and PurgedBytes are the totals over all stylesheets.
	OriginalBytes int `json:"originalBytes"`
	PurgedBytes   int `json:"purgedBytes"`

	// Stylesheets holds the per-stylesheet sizes.
	Stylesheets []model.PurgeResult `json:"stylesheets"`

	// Skipped lists the excluded stylesheet references.
	Skipped []model.SkippedStylesheet `json:"skipped,omitempty"`

	// Diagnostics lists the recoverable errors of the run.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// ElapsedMS is the run duration in milliseconds.
	ElapsedMS int64 `json:"elapsedMs"`
}

// NewDetailedResult wraps result with version information.
func NewDetailedResult(result *model.Result, version string) *DetailedResult {
	stylesheets := result.Stylesheets
	if stylesheets == nil {
		stylesheets = []model.PurgeResult{}
	}
	return &DetailedResult{
		Version:         version,
		RunID:           result.RunID,
		Target:          result.Target,
		ReductionFactor: result.ReductionFactor,
		CSS:             result.CSS,
		OriginalBytes:   result.OriginalSize(),
		PurgedBytes:     result.PurgedSize(),
		Stylesheets:     stylesheets,
		Skipped:         result.Skipped,
		Diagnostics:     result.Diagnostics,
		ElapsedMS:       result.Elapsed.Milliseconds(),
	}
}

// Failure describes a failed run.
type Failure struct {
	// Target is the target as given by the caller.
	Target string `json:"target"`

	// State is the pipeline state that failed. Empty when the run never
	// started, e.g. for an invalid target.
	State string `json:"state,omitempty"`

	// Error is the failure message.
	Error string `json:"error"`
}

// NewFailure builds a Failure for target.
func NewFailure(target string, err error) *Failure {
	f := &Failure{Target: target, State: failedStage(err)}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}
