package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/csstrim/internal/model"
)

// createTestResult creates a result with sample data for testing.
func createTestResult() *model.Result {
	return &model.Result{
		ReductionFactor: 0.625,
		CSS:             "button{color:red}\n",
		RunID:           "0190c6a4-7a3e-7d4c-8b7f-2f1e6d2a9b10",
		Target:          "https://example.com/",
		Stylesheets: []model.PurgeResult{
			{SourceID: "main", CSS: "button{color:red}\n", OriginalSize: 40, PurgedSize: 18},
			{SourceID: "theme", CSS: "", OriginalSize: 8, PurgedSize: 0},
		},
		Skipped: []model.SkippedStylesheet{
			{Href: "http://[::1", Reason: "malformed stylesheet reference"},
		},
		Diagnostics: []string{"http://[::1: malformed stylesheet reference"},
		Elapsed: 1500 * time.Millisecond,
	}
}

func stageFailure() error {
	return &model.StageError{
		State: model.StateFetching,
		Err:   fmt.Errorf("%w: unexpected status 503", model.ErrPageUnreachable),
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "CSSTRIM REPORT") {
			t.Error("expected output to contain header")
		}
		if !strings.Contains(output, "https://example.com/") {
			t.Error("expected output to contain target")
		}
	})

	t.Run("writes reduction summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"REDUCTION SUMMARY", "ORIGINAL:  48 B", "PURGED:    18 B", "62.50%"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes stylesheets and skipped references", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[+] main: 40 B -> 18 B") {
			t.Error("expected output to list main stylesheet")
		}
		if !strings.Contains(output, "[-] http://[::1") {
			t.Error("expected output to list skipped reference")
		}
	})

	t.Run("verbose mode includes css", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "PURGED CSS") || !strings.Contains(output, "button{color:red}") {
			t.Error("expected verbose output to contain purged css")
		}
	})

	t.Run("hides empty sections unless requested", func(t *testing.T) {
		t.Parallel()

		result := &model.Result{Target: "https://example.com/"}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "STYLESHEETS") {
			t.Error("expected empty stylesheet section to be hidden")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No stylesheets processed") {
			t.Error("expected empty stylesheet section to be shown")
		}
	})

	t.Run("writes failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteFailure("example.com", stageFailure()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED in fetching") {
			t.Errorf("expected failing state in output, got %q", output)
		}
		if !strings.Contains(output, "unexpected status 503") {
			t.Error("expected error message in output")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes only the result contract by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed map[string]any
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		want := map[string]any{
			"reductionFactor": 0.625,
			"css":             "button{color:red}\n",
		}
		if diff := cmp.Diff(want, parsed); diff != "" {
			t.Errorf("json mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := strings.TrimSuffix(buf.String(), "\n")
		if strings.Contains(output, "\n") {
			t.Error("expected a single line of JSON")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"reductionFactor\"") {
			t.Errorf("expected indented output, got %q", buf.String())
		}
	})

	t.Run("details include run metadata", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithDetails("v1.2.3")).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed DetailedResult
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if parsed.Version != "v1.2.3" {
			t.Errorf("expected version v1.2.3, got %q", parsed.Version)
		}
		if parsed.OriginalBytes != 48 || parsed.PurgedBytes != 18 {
			t.Errorf("unexpected sizes %d/%d", parsed.OriginalBytes, parsed.PurgedBytes)
		}
		if parsed.ElapsedMS != 1500 {
			t.Errorf("expected 1500ms, got %d", parsed.ElapsedMS)
		}
		if len(parsed.Stylesheets) != 2 || parsed.Stylesheets[0].SourceID != "main" {
			t.Errorf("unexpected stylesheets %+v", parsed.Stylesheets)
		}
		want := []string{"http://[::1: malformed stylesheet reference"}
		if diff := cmp.Diff(want, parsed.Diagnostics); diff != "" {
			t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("details never emit a null stylesheet list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithDetails("")).Write(&model.Result{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"stylesheets":[]`) {
			t.Errorf("expected empty stylesheet array, got %q", buf.String())
		}
	})

	t.Run("writes failure", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			err  error
			want Failure
		}{
			{
				name: "stage failure",
				err:  stageFailure(),
				want: Failure{Target: "example.com", State: "fetching", Error: stageFailure().Error()},
			},
			{
				name: "invalid target",
				err:  model.ErrInvalidTarget,
				want: Failure{Target: "example.com", Error: model.ErrInvalidTarget.Error()},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				var buf bytes.Buffer
				if _, err := NewJSONWriter(&buf).WriteFailure("example.com", tt.err); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				var got Failure
				if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
					t.Fatalf("output is not valid JSON: %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("failure mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# csstrim Report",
			"## Reduction Summary",
			"## Stylesheets",
			"`main`",
			"```mermaid",
			"Removed",
			"## Skipped Stylesheets",
			"## Diagnostics",
			"malformed stylesheet reference",
			"## Purged CSS",
			"```css",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected markdown to contain %q", want)
			}
		}
	})

	t.Run("css block can be disabled", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithCSS(false)).Write(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "## Purged CSS") {
			t.Error("expected css section to be omitted")
		}
	})

	t.Run("no chart without stylesheets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(&model.Result{Target: "https://example.com/"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart for an empty result")
		}
		if !strings.Contains(output, "No stylesheets processed.") {
			t.Error("expected empty stylesheet notice")
		}
	})

	t.Run("writes failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteFailure("example.com", stageFailure()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Failed In") || !strings.Contains(output, "fetching") {
			t.Errorf("expected failing state in markdown, got %q", output)
		}
	})
}

// failingWriter is a Writer that always fails.
type failingWriter struct{}

func (failingWriter) Write(*model.Result) (int, error)         { return 0, errors.New("write failed") }
func (failingWriter) WriteFailure(string, error) (int, error) { return 0, errors.New("write failed") }

// TestMultiWriter tests writing to multiple destinations.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var jsonBuf, textBuf bytes.Buffer
		mw := NewMultiWriter(NewJSONWriter(&jsonBuf), NewSimpleWriter(&textBuf))

		n, err := mw.Write(createTestResult())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != jsonBuf.Len()+textBuf.Len() {
			t.Errorf("expected %d bytes, got %d", jsonBuf.Len()+textBuf.Len(), n)
		}
		if jsonBuf.Len() == 0 || textBuf.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf))

		if _, err := mw.WriteFailure("example.com", model.ErrInvalidTarget); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}
