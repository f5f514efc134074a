package report

import (
	"errors"
	"io"

	"github.com/nao1215/csstrim/internal/model"
)

// Writer defines the interface for report output.
// Implementations write run results in various formats.
type Writer interface {
	// Write outputs the result of a successful run.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.Result) (int, error)

	// WriteFailure outputs the outcome of a run that failed for target.
	WriteFailure(target string, err error) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.Result) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteFailure outputs the failure to all configured Writers.
func (m *MultiWriter) WriteFailure(target string, runErr error) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteFailure(target, runErr)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// failedStage returns the pipeline state recorded in err, or "" when the
// run never started.
func failedStage(err error) string {
	var se *model.StageError
	if errors.As(err, &se) {
		return se.State.String()
	}
	return ""
}
