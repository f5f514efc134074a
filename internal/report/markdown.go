package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/csstrim/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// syntaxHighlightCSS is the fence language for purged css.
const syntaxHighlightCSS markdown.SyntaxHighlight = "css"

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// includeCSS appends the purged css as a code block.
	includeCSS bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithCSS controls whether the purged css is included in the report.
func WithCSS(include bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.includeCSS = include
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		includeCSS: true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSummary(md, result)
	w.writeStylesheets(md, result)
	w.writeSkipped(md, result)
	w.writeDiagnostics(md, result)
	if w.includeCSS {
		w.writeCSS(md, result)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteFailure outputs a failed run in Markdown format.
func (w *MarkdownWriter) WriteFailure(target string, err error) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("csstrim Report")
	md.PlainText("")

	failure := NewFailure(target, err)
	rows := [][]string{
		{"Target", "`" + target + "`"},
		{"Status", "❌ Failed"},
	}
	if failure.State != "" {
		rows = append(rows, []string{"Failed In", failure.State})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
	md.Cautionf("Run failed: %s", failure.Error)
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.Result) {
	md.H1("csstrim Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + result.Target + "`"},
			{"Run ID", "`" + result.RunID + "`"},
			{"Elapsed", result.Elapsed.String()},
			{"Stylesheets", strconv.Itoa(len(result.Stylesheets))},
			{"Skipped", strconv.Itoa(len(result.Skipped))},
			{"Status", "✅ Complete"},
		},
	})
	md.PlainText("")
}

// writeSummary writes the size summary with a kept/removed chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, result *model.Result) {
	md.H2("Reduction Summary")
	md.PlainText("")

	original := result.OriginalSize()
	purged := result.PurgedSize()

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Original Size", formatBytes(original)},
			{"Purged Size", formatBytes(purged)},
			{"Removed", formatBytes(original - purged)},
			{"**Reduction Factor**", "**" + formatFactor(result.ReductionFactor) + "**"},
		},
	})
	md.PlainText("")

	if original > 0 {
		w.writePieChart(md, original, purged)
	}

	w.writeAlert(md, result)
}

// writePieChart writes a mermaid pie chart of kept versus removed bytes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, original, purged int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Stylesheet Bytes"),
		piechart.WithShowData(true),
	)

	if purged > 0 {
		chart.LabelAndIntValue("Kept", uint64(purged))
	}
	if removed := original - purged; removed > 0 {
		chart.LabelAndIntValue("Removed", uint64(removed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert based on how much css was unused.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.Result) {
	switch {
	case len(result.Stylesheets) == 0:
		md.Note("No stylesheet could be downloaded; nothing was purged.")
	case result.ReductionFactor >= 0.5:
		md.Importantf("%s of the linked css is unused by this page.", formatFactor(result.ReductionFactor))
	case result.ReductionFactor > 0:
		md.Tip(fmt.Sprintf("%s of the linked css is unused by this page.", formatFactor(result.ReductionFactor)))
	default:
		md.Tip("Every linked rule is used by this page.")
	}
	md.PlainText("")
}

// writeStylesheets writes the per-stylesheet table.
func (w *MarkdownWriter) writeStylesheets(md *markdown.Markdown, result *model.Result) {
	md.H2("Stylesheets")
	md.PlainText("")

	if len(result.Stylesheets) == 0 {
		md.PlainText("No stylesheets processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Stylesheets))
	for i, s := range result.Stylesheets {
		rows[i] = []string{
			"`" + s.SourceID + "`",
			formatBytes(s.OriginalSize),
			formatBytes(s.PurgedSize),
			formatBytes(s.RemovedBytes()),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Original", "Purged", "Removed"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSkipped lists the references excluded from the run.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, result *model.Result) {
	if len(result.Skipped) == 0 {
		return
	}

	md.H2("Skipped Stylesheets")
	md.PlainText("")

	items := make([]string, len(result.Skipped))
	for i, s := range result.Skipped {
		items[i] = fmt.Sprintf("`%s`: %s", truncateString(s.Href, 80), s.Reason)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeDiagnostics lists the recoverable errors of the run.
func (w *MarkdownWriter) writeDiagnostics(md *markdown.Markdown, result *model.Result) {
	if len(result.Diagnostics) == 0 {
		return
	}

	md.H2("Diagnostics")
	md.PlainText("")

	items := make([]string, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		items[i] = truncateString(d, 160)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeCSS writes the purged css.
func (w *MarkdownWriter) writeCSS(md *markdown.Markdown, result *model.Result) {
	if result.CSS == "" {
		return
	}

	md.H2("Purged CSS")
	md.PlainText("")
	md.CodeBlocks(syntaxHighlightCSS, result.CSS)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [csstrim](https://github.com/nao1215/csstrim)*")
}

// formatBytes renders n as a byte count.
func formatBytes(n int) string {
	return strconv.Itoa(n) + " B"
}

// formatFactor renders a reduction factor as a percentage.
func formatFactor(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
