package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/pipeline"
	"github.com/nao1215/csstrim/internal/report"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/main.css" {
			fmt.Fprint(w, ".used { color: red } .unused { color: blue }")
			return
		}
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/main.css"></head><body><p class="used">x</p></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func purgeConfig(t *testing.T, targets ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.WorkspaceDir = t.TempDir()
	cfg.BatchSize = 2
	cfg.Targets = targets
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPurge(t *testing.T) {
	t.Parallel()

	t.Run("writes one JSON line per target", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		host := strings.TrimPrefix(site.URL, "https://")
		cfg := purgeConfig(t, host, host+"/other/")

		var buf bytes.Buffer
		err := runPurge(context.Background(), cfg, report.NewJSONWriter(&buf), testLogger(),
			pipeline.WithHTTPClient(site.Client()),
			pipeline.WithRunnerLogger(testLogger()),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
		}
		for _, line := range lines {
			var got struct {
				ReductionFactor float64 `json:"reductionFactor"`
				CSS             string  `json:"css"`
			}
			if err := json.Unmarshal([]byte(line), &got); err != nil {
				t.Fatalf("invalid JSON line %q: %v", line, err)
			}
			if got.CSS != ".used{color:red}\n" {
				t.Errorf("unexpected css %q", got.CSS)
			}
			if got.ReductionFactor <= 0 {
				t.Errorf("expected positive reduction factor, got %v", got.ReductionFactor)
			}
		}
	})

	t.Run("reports failed targets and returns an error", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		host := strings.TrimPrefix(site.URL, "https://")
		cfg := purgeConfig(t, host, "not a host")

		var buf bytes.Buffer
		err := runPurge(context.Background(), cfg, report.NewJSONWriter(&buf), testLogger(),
			pipeline.WithHTTPClient(site.Client()),
			pipeline.WithRunnerLogger(testLogger()),
		)
		if err == nil || !strings.Contains(err.Error(), "1 of 2 targets failed") {
			t.Fatalf("expected partial failure error, got %v", err)
		}
		if !strings.Contains(buf.String(), `"target":"not a host"`) {
			t.Errorf("expected failure entry in output, got %q", buf.String())
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		details bool
		want    string
	}{
		{"json by default", config.Config{}, false, "*report.JSONWriter"},
		{"json with details", config.Config{}, true, "*report.JSONWriter"},
		{"markdown", config.Config{MarkdownReport: true}, false, "*report.MarkdownWriter"},
		{"text", config.Config{TextReport: true}, false, "*report.SimpleWriter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := newReportWriter(&tt.cfg, io.Discard, tt.details)
			if got := fmt.Sprintf("%T", w); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	t.Parallel()

	t.Run("stdout when no file is configured", func(t *testing.T) {
		t.Parallel()

		var stdout bytes.Buffer
		out, closeFn, err := openOutput(&config.Config{}, &stdout)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()
		if out != &stdout {
			t.Error("expected stdout to be returned")
		}
	})

	t.Run("creates file and directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "reports", "out.json")
		out, closeFn, err := openOutput(&config.Config{ReportFile: path}, io.Discard)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := io.WriteString(out, "{}\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
		closeFn()

		content, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(content) != "{}\n" {
			t.Errorf("unexpected content %q", content)
		}
	})
}

func TestPurgeCmd_RequiresTarget(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"purge"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error without targets")
	}
}
