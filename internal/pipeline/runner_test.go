package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/crawler"
	"github.com/nao1215/csstrim/internal/model"
	"github.com/nao1215/csstrim/internal/purge"
	"github.com/nao1215/csstrim/internal/workspace"
)

const sharedCSS = "button { color: red } .unused { color: blue }"

// releaseProbe records every workspace release.
type releaseProbe struct {
	mu    sync.Mutex
	dirs  []string
	calls int
}

func (p *releaseProbe) hook(ws *workspace.Workspace, _ error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.dirs = append(p.dirs, ws.Dir())
}

func (p *releaseProbe) snapshot() (int, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]string(nil), p.dirs...)
}

func (p *releaseProbe) assertReleasedOnce(t *testing.T) {
	t.Helper()

	calls, dirs := p.snapshot()
	if calls != 1 {
		t.Fatalf("expected workspace to be released once, got %d", calls)
	}
	if _, err := os.Stat(dirs[0]); !os.IsNotExist(err) {
		t.Errorf("expected workspace dir %s to be removed, stat err = %v", dirs[0], err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.WorkspaceDir = t.TempDir()
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, srv *httptest.Server, probe *releaseProbe, opts ...RunnerOption) *Runner {
	t.Helper()

	base := []RunnerOption{
		WithRunnerLogger(discardLogger()),
		WithWorkspaceOptions(workspace.WithReleaseHook(probe.hook)),
	}
	if srv != nil {
		base = append(base, WithHTTPClient(srv.Client()))
	}
	return NewRunner(cfg, append(base, opts...)...)
}

func serverTarget(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "https://")
}

func TestRunner_Run_PurgesLinkedStylesheets(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
<link rel="stylesheet" href="/a.css">
<link rel="stylesheet" href="/b.css">
</head><body><button>Go</button></body></html>`)
	})
	css := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, sharedCSS)
	}
	mux.HandleFunc("/a.css", css)
	mux.HandleFunc("/b.css", css)
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)

	probe := &releaseProbe{}
	cfg := testConfig(t)
	runner := newTestRunner(t, cfg, srv, probe)

	result, err := runner.Run(context.Background(), serverTarget(srv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Count(result.CSS, "button{color:red}"); got != 2 {
		t.Errorf("expected button rule from both stylesheets, got %d in %q", got, result.CSS)
	}
	if strings.Contains(result.CSS, ".unused") {
		t.Errorf("expected .unused to be purged, got %q", result.CSS)
	}
	if result.ReductionFactor <= 0 || result.ReductionFactor >= 1 {
		t.Errorf("expected reduction factor in (0,1), got %v", result.ReductionFactor)
	}
	if len(result.Stylesheets) != 2 {
		t.Fatalf("expected 2 stylesheets, got %d", len(result.Stylesheets))
	}
	if result.Stylesheets[0].SourceID != "a" || result.Stylesheets[1].SourceID != "b" {
		t.Errorf("expected stylesheets in document order, got %s, %s",
			result.Stylesheets[0].SourceID, result.Stylesheets[1].SourceID)
	}
	if result.RunID == "" {
		t.Error("expected run id to be set")
	}

	probe.assertReleasedOnce(t)
	entries, err := os.ReadDir(cfg.WorkspaceDir)
	if err != nil {
		t.Fatalf("read workspace base: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected workspace base to be empty, found %d entries", len(entries))
	}
}

func TestRunner_Run_MalformedReferenceYieldsEmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><link rel="stylesheet" href="http://[::1"></head><body></body></html>`)
	}))
	t.Cleanup(srv.Close)

	probe := &releaseProbe{}
	runner := newTestRunner(t, testConfig(t), srv, probe)

	result, err := runner.Run(context.Background(), serverTarget(srv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReductionFactor != 0 {
		t.Errorf("expected reduction factor 0, got %v", result.ReductionFactor)
	}
	if result.CSS != "" {
		t.Errorf("expected empty css, got %q", result.CSS)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped reference, got %d", len(result.Skipped))
	}
	if len(result.Diagnostics) != 1 || !strings.HasPrefix(result.Diagnostics[0], "http://[::1") {
		t.Errorf("expected one diagnostic for the malformed reference, got %q", result.Diagnostics)
	}
	probe.assertReleasedOnce(t)
}

func TestRunner_Run_UnreachablePage(t *testing.T) {
	t.Parallel()

	var cssRequests atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".css") {
			cssRequests.Add(1)
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	probe := &releaseProbe{}
	runner := newTestRunner(t, testConfig(t), srv, probe)

	_, err := runner.Run(context.Background(), serverTarget(srv))
	if !errors.Is(err, model.ErrPageUnreachable) {
		t.Fatalf("expected ErrPageUnreachable, got %v", err)
	}
	if got := model.FailedState(err); got != model.StateFetching {
		t.Errorf("expected failure in fetching, got %s", got)
	}
	if cssRequests.Load() != 0 {
		t.Errorf("expected no stylesheet requests, got %d", cssRequests.Load())
	}
	probe.assertReleasedOnce(t)
}

func TestRunner_Run_ConcurrentRunsAreIsolated(t *testing.T) {
	t.Parallel()

	// Each path serves a page using one marker class and a stylesheet that
	// declares every marker.
	const markers = 4
	var allRules strings.Builder
	for i := range markers {
		fmt.Fprintf(&allRules, ".marker-%d { color: red }\n", i)
	}

	mux := http.NewServeMux()
	for i := range markers {
		mux.HandleFunc(fmt.Sprintf("/site-%d/", i), func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `<html><head><link rel="stylesheet" href="/all.css"></head>`+
				`<body><div class="marker-%d"></div></body></html>`, i)
		})
	}
	mux.HandleFunc("/all.css", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, allRules.String())
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)

	probe := &releaseProbe{}
	cfg := testConfig(t)
	runner := newTestRunner(t, cfg, srv, probe)

	results := make([]*model.Result, markers)
	errs := make([]error, markers)
	var wg sync.WaitGroup
	for i := range markers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = runner.Run(context.Background(),
				fmt.Sprintf("%s/site-%d/", serverTarget(srv), i))
		}()
	}
	wg.Wait()

	for i := range markers {
		if errs[i] != nil {
			t.Fatalf("run %d: unexpected error: %v", i, errs[i])
		}
		for j := range markers {
			has := strings.Contains(results[i].CSS, fmt.Sprintf(".marker-%d{", j))
			if has != (i == j) {
				t.Errorf("run %d: marker-%d present = %v, css = %q", i, j, has, results[i].CSS)
			}
		}
	}

	calls, dirs := probe.snapshot()
	if calls != markers {
		t.Fatalf("expected %d releases, got %d", markers, calls)
	}
	seen := make(map[string]bool)
	for _, d := range dirs {
		if seen[d] {
			t.Errorf("workspace dir %s used by more than one run", d)
		}
		seen[d] = true
	}
	entries, err := os.ReadDir(cfg.WorkspaceDir)
	if err != nil {
		t.Fatalf("read workspace base: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected workspace base to be empty, found %d entries", len(entries))
	}
}

func TestRunner_Run_NoStylesheetsPolicy(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T) *httptest.Server {
		t.Helper()
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `<html><head><style>p{}</style></head><body><p>x</p></body></html>`)
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("fails by default", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)
		probe := &releaseProbe{}
		runner := newTestRunner(t, testConfig(t), srv, probe)

		_, err := runner.Run(context.Background(), serverTarget(srv))
		if !errors.Is(err, model.ErrNoStylesheets) {
			t.Fatalf("expected ErrNoStylesheets, got %v", err)
		}
		if got := model.FailedState(err); got != model.StateExtracting {
			t.Errorf("expected failure in extracting, got %s", got)
		}
		probe.assertReleasedOnce(t)
	})

	t.Run("empty result when disabled", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)
		probe := &releaseProbe{}
		cfg := testConfig(t)
		cfg.FailOnNoStylesheets = false
		runner := newTestRunner(t, cfg, srv, probe)

		result, err := runner.Run(context.Background(), serverTarget(srv))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.CSS != "" || result.ReductionFactor != 0 {
			t.Errorf("expected empty result, got css=%q factor=%v", result.CSS, result.ReductionFactor)
		}
		probe.assertReleasedOnce(t)
	})

	t.Run("per-site override", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)
		probe := &releaseProbe{}
		disabled := false
		cfg := testConfig(t)
		cfg.SiteConfigs = &config.File{
			Sites: map[string]config.SiteConfig{
				serverTarget(srv): {FailOnNoStylesheets: &disabled},
			},
		}
		runner := newTestRunner(t, cfg, srv, probe)

		if _, err := runner.Run(context.Background(), serverTarget(srv)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		probe.assertReleasedOnce(t)
	})
}

// fake collaborators used for fault injection.

type fetcherFunc func(ctx context.Context, pageURL string) (*model.Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	return f(ctx, pageURL)
}

type downloaderFunc func(ctx context.Context, refs []string) (*crawler.DownloadReport, error)

func (f downloaderFunc) DownloadAll(ctx context.Context, refs []string) (*crawler.DownloadReport, error) {
	return f(ctx, refs)
}

type purgerFunc func(ctx context.Context, html []string, assets []model.StylesheetAsset, sl purge.Safelist) ([]model.PurgeResult, error)

func (f purgerFunc) Purge(ctx context.Context, html []string, assets []model.StylesheetAsset, sl purge.Safelist) ([]model.PurgeResult, error) {
	return f(ctx, html, assets, sl)
}

func okFetcher() PageFetcher {
	return fetcherFunc(func(_ context.Context, pageURL string) (*model.Page, error) {
		return &model.Page{URL: pageURL, StatusCode: http.StatusOK, HTML: `<button></button>`}, nil
	})
}

func okExtractor() LinkExtractor {
	return LinkExtractorFunc(func(*model.Page) ([]string, error) {
		return []string{"https://example.com/a.css"}, nil
	})
}

func okDownloader() StylesheetDownloader {
	return downloaderFunc(func(context.Context, []string) (*crawler.DownloadReport, error) {
		return &crawler.DownloadReport{
			Assets: []model.StylesheetAsset{{SourceID: "a", URL: "https://example.com/a.css", CSS: sharedCSS}},
		}, nil
	})
}

func TestRunner_Run_StageFailures(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		opts      []RunnerOption
		wantState model.State
		wantCause error
	}{
		{
			name: "fetch",
			opts: []RunnerOption{
				WithFetcher(fetcherFunc(func(context.Context, string) (*model.Page, error) { return nil, errBoom })),
			},
			wantState: model.StateFetching,
			wantCause: model.ErrPageUnreachable,
		},
		{
			name: "extract",
			opts: []RunnerOption{
				WithFetcher(okFetcher()),
				WithExtractor(LinkExtractorFunc(func(*model.Page) ([]string, error) { return nil, errBoom })),
			},
			wantState: model.StateExtracting,
			wantCause: model.ErrDocumentParse,
		},
		{
			name: "download",
			opts: []RunnerOption{
				WithFetcher(okFetcher()),
				WithExtractor(okExtractor()),
				WithDownloader(downloaderFunc(func(context.Context, []string) (*crawler.DownloadReport, error) {
					return nil, errBoom
				})),
			},
			wantState: model.StateDownloading,
			wantCause: errBoom,
		},
		{
			name: "purge",
			opts: []RunnerOption{
				WithFetcher(okFetcher()),
				WithExtractor(okExtractor()),
				WithDownloader(okDownloader()),
				WithPurger(purgerFunc(func(context.Context, []string, []model.StylesheetAsset, purge.Safelist) ([]model.PurgeResult, error) {
					return nil, errBoom
				})),
			},
			wantState: model.StatePurging,
			wantCause: model.ErrPurgeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			probe := &releaseProbe{}
			runner := newTestRunner(t, testConfig(t), nil, probe, tt.opts...)

			_, err := runner.Run(context.Background(), "example.com")
			if !errors.Is(err, tt.wantCause) {
				t.Fatalf("expected cause %v, got %v", tt.wantCause, err)
			}
			if !errors.Is(err, errBoom) {
				t.Errorf("expected underlying error to be preserved, got %v", err)
			}
			if got := model.FailedState(err); got != tt.wantState {
				t.Errorf("expected failure in %s, got %s", tt.wantState, got)
			}
			probe.assertReleasedOnce(t)
		})
	}
}

func TestRunner_Run_FakeCollaborators(t *testing.T) {
	t.Parallel()

	probe := &releaseProbe{}
	runner := newTestRunner(t, testConfig(t), nil, probe,
		WithFetcher(okFetcher()),
		WithExtractor(okExtractor()),
		WithDownloader(okDownloader()),
	)

	result, err := runner.Run(context.Background(), "https://Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Target != "https://example.com/" {
		t.Errorf("expected normalized target, got %q", result.Target)
	}
	if result.CSS != "button{color:red}\n" {
		t.Errorf("unexpected css %q", result.CSS)
	}
	probe.assertReleasedOnce(t)
}

func TestRunner_Run_Deadline(t *testing.T) {
	t.Parallel()

	probe := &releaseProbe{}
	cfg := testConfig(t)
	cfg.Timeout = 50 * time.Millisecond

	blocking := fetcherFunc(func(ctx context.Context, _ string) (*model.Page, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	runner := newTestRunner(t, cfg, nil, probe, WithFetcher(blocking))

	_, err := runner.Run(context.Background(), "example.com")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if got := model.FailedState(err); got != model.StateFetching {
		t.Errorf("expected failure in fetching, got %s", got)
	}
	probe.assertReleasedOnce(t)
}

func TestRunner_Run_InvalidTarget(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "https://", "exa mple.com"} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			t.Parallel()

			probe := &releaseProbe{}
			runner := newTestRunner(t, testConfig(t), nil, probe)

			_, err := runner.Run(context.Background(), raw)
			if !errors.Is(err, model.ErrInvalidTarget) {
				t.Fatalf("expected ErrInvalidTarget, got %v", err)
			}
			if calls, _ := probe.snapshot(); calls != 0 {
				t.Errorf("expected no workspace for invalid target, got %d releases", calls)
			}
		})
	}
}

func TestRunner_Run_InvalidSafelistPattern(t *testing.T) {
	t.Parallel()

	probe := &releaseProbe{}
	cfg := testConfig(t)
	cfg.SafelistPatterns = []string{"("}
	runner := newTestRunner(t, cfg, nil, probe, WithFetcher(okFetcher()))

	_, err := runner.Run(context.Background(), "example.com")
	if !errors.Is(err, model.ErrPurgeFailed) {
		t.Fatalf("expected ErrPurgeFailed, got %v", err)
	}
	if calls, _ := probe.snapshot(); calls != 0 {
		t.Errorf("expected no workspace, got %d releases", calls)
	}
}
