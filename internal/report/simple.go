package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/csstrim/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose adds the purged css to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output including the purged css.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result in human-readable format.
func (w *SimpleWriter) Write(result *model.Result) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result.Target)
	fmt.Fprintf(&sb, "Run ID:         %s\n", result.RunID)
	fmt.Fprintf(&sb, "Elapsed:        %s\n", result.Elapsed)
	sb.WriteString("Status:         Complete\n\n")

	w.writeSummary(&sb, result)
	w.writeStylesheets(&sb, result)
	w.writeSkipped(&sb, result)
	if w.verbose {
		w.writeCSS(&sb, result)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteFailure outputs a failed run in human-readable format.
func (w *SimpleWriter) WriteFailure(target string, err error) (int, error) {
	var sb strings.Builder

	failure := NewFailure(target, err)
	w.writeHeader(&sb, target)
	if failure.State != "" {
		fmt.Fprintf(&sb, "Status:         FAILED in %s\n", failure.State)
	} else {
		sb.WriteString("Status:         FAILED\n")
	}
	fmt.Fprintf(&sb, "Error:          %s\n\n", failure.Error)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, target string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          CSSTRIM REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:         %s\n", target)
}

// writeSection writes a section title.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeSummary writes the size summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, result *model.Result) {
	w.writeSection(sb, "REDUCTION SUMMARY")

	original := result.OriginalSize()
	purged := result.PurgedSize()
	fmt.Fprintf(sb, "  ORIGINAL:  %s\n", formatBytes(original))
	fmt.Fprintf(sb, "  PURGED:    %s\n", formatBytes(purged))
	fmt.Fprintf(sb, "  REMOVED:   %s\n", formatBytes(original-purged))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  REDUCTION: %s (factor %.4f)\n", formatFactor(result.ReductionFactor), result.ReductionFactor)
	sb.WriteString("\n")
}

// writeStylesheets writes one line per processed stylesheet.
func (w *SimpleWriter) writeStylesheets(sb *strings.Builder, result *model.Result) {
	if len(result.Stylesheets) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "STYLESHEETS")

	if len(result.Stylesheets) == 0 {
		sb.WriteString("  No stylesheets processed\n\n")
		return
	}
	for _, s := range result.Stylesheets {
		fmt.Fprintf(sb, "  [+] %s: %s -> %s\n", s.SourceID, formatBytes(s.OriginalSize), formatBytes(s.PurgedSize))
	}
	sb.WriteString("\n")
}

// writeSkipped writes the references excluded from the run.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, result *model.Result) {
	if len(result.Skipped) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "SKIPPED")

	if len(result.Skipped) == 0 {
		sb.WriteString("  Nothing skipped\n\n")
		return
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(sb, "  [-] %s\n", s.Href)
		fmt.Fprintf(sb, "      Reason: %s\n", s.Reason)
	}
	sb.WriteString("\n")
}

// writeCSS writes the purged css.
func (w *SimpleWriter) writeCSS(sb *strings.Builder, result *model.Result) {
	w.writeSection(sb, "PURGED CSS")
	if result.CSS == "" {
		sb.WriteString("  (empty)\n\n")
		return
	}
	sb.WriteString(result.CSS)
	if !strings.HasSuffix(result.CSS, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by csstrim\n")
	sb.WriteString("https://github.com/nao1215/csstrim\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
