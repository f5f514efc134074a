package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/crawler"
	"github.com/nao1215/csstrim/internal/model"
	"github.com/nao1215/csstrim/internal/purge"
	"github.com/nao1215/csstrim/internal/workspace"
)

// Runner executes complete runs: one target in, one result out.
// A Runner holds no per-run state and is safe for concurrent use.
type Runner struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger

	recorder      Recorder
	workspaceOpts []workspace.Option

	// Overrides for the default collaborators, nil when unset.
	fetcher    PageFetcher
	extractor  LinkExtractor
	downloader StylesheetDownloader
	purger     purge.Purger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithHTTPClient sets the client used for the page and stylesheet requests.
func WithHTTPClient(client *http.Client) RunnerOption {
	return func(r *Runner) {
		r.client = client
	}
}

// WithRunnerLogger sets the logger handed to every run.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithWorkspaceOptions adds options applied to every acquired workspace.
func WithWorkspaceOptions(opts ...workspace.Option) RunnerOption {
	return func(r *Runner) {
		r.workspaceOpts = append(r.workspaceOpts, opts...)
	}
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f PageFetcher) RunnerOption {
	return func(r *Runner) {
		r.fetcher = f
	}
}

// WithExtractor replaces the stylesheet link extractor.
func WithExtractor(e LinkExtractor) RunnerOption {
	return func(r *Runner) {
		r.extractor = e
	}
}

// WithDownloader replaces the stylesheet downloader.
func WithDownloader(d StylesheetDownloader) RunnerOption {
	return func(r *Runner) {
		r.downloader = d
	}
}

// WithPurger replaces the purge engine.
func WithPurger(p purge.Purger) RunnerOption {
	return func(r *Runner) {
		r.purger = p
	}
}

// NewRunner creates a Runner. A nil cfg means config.NewConfig().
func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	r := &Runner{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return r
}

// Run executes one run for rawTarget.
//
// The target is normalized first; an invalid target returns
// model.ErrInvalidTarget and no other work is done. Otherwise a fresh
// workspace is acquired and always released before Run returns, whether
// the run ends in StateDone or StateFailed. The whole run is bounded by
// the configured timeout.
func (r *Runner) Run(ctx context.Context, rawTarget string) (*model.Result, error) {
	target, err := model.NormalizeTarget(rawTarget)
	if err != nil {
		return nil, err
	}

	site := r.cfg.ForSite(target.Host())
	safelist, err := r.safelist(site)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPurgeFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	runID := newRunID()
	logger := r.logger.With("run_id", runID)

	ws, err := workspace.Acquire(r.cfg.WorkspaceDir, runID, r.workspaceOpts...)
	if err != nil {
		r.recorder.RunFinished(false, model.StatePending.String(), 0, 0)
		return nil, fmt.Errorf("%w: %w", model.ErrWorkspace, err)
	}
	defer func() {
		rerr := ws.Release()
		r.recorder.WorkspaceReleased(rerr)
		if rerr != nil {
			logger.Warn("workspace release failed", "dir", ws.Dir(), "error", rerr)
		}
	}()

	run := model.NewRun(runID, target)
	run.Workspace = ws

	logger.Info("run started", "target", target.String())

	p := r.newPipeline(site, safelist, logger)
	if err := p.Execute(ctx, run); err != nil {
		r.recorder.RunFinished(false, model.FailedState(err).String(), run.Elapsed(), 0)
		logger.Warn("run failed",
			"target", target.String(),
			"state", model.FailedState(err).String(),
			"error", err,
		)
		return nil, err
	}

	result := run.Result()
	r.recorder.RunFinished(true, run.State.String(), run.Elapsed(), result.ReductionFactor)
	logger.Info("run finished",
		"target", target.String(),
		"stylesheets", len(result.Stylesheets),
		"skipped", len(result.Skipped),
		"reduction_factor", result.ReductionFactor,
		"elapsed", result.Elapsed,
	)
	if len(result.Diagnostics) > 0 {
		logger.Warn("run finished with recoverable errors",
			"target", target.String(),
			"count", len(result.Diagnostics),
			"errors", result.Diagnostics,
		)
	}
	return result, nil
}

// newPipeline assembles the steps for one run.
func (r *Runner) newPipeline(site config.SiteSettings, safelist purge.Safelist, logger *slog.Logger) *Pipeline {
	fetcher := r.fetcher
	if fetcher == nil {
		fetcher = crawler.NewFetcher(r.client,
			crawler.WithFetcherUserAgent(r.cfg.UserAgent),
			crawler.WithFetcherMaxBodySize(r.maxBodySize()),
			crawler.WithFetcherHeaders(site.Headers),
			crawler.WithFetcherCookie(site.Cookie),
			crawler.WithFetcherLogger(logger),
		)
	}

	extractor := r.extractor
	if extractor == nil {
		extractor = LinkExtractorFunc(crawler.ExtractStylesheetLinks)
	}

	downloader := r.downloader
	if downloader == nil {
		downloader = crawler.NewDownloader(r.client,
			crawler.WithDownloaderConcurrency(r.cfg.DownloadConcurrency),
			crawler.WithDownloaderUserAgent(r.cfg.UserAgent),
			crawler.WithDownloaderMaxBodySize(r.maxBodySize()),
			crawler.WithDownloaderHeaders(site.Headers),
			crawler.WithDownloaderCookie(site.Cookie),
			crawler.WithDownloaderLogger(logger),
		)
	}

	purger := r.purger
	if purger == nil {
		purger = purge.NewEngine(purge.WithLogger(logger))
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewFetchStep(fetcher, logger),
		NewExtractStep(extractor, site.FailOnNoStylesheets, logger),
		NewDownloadStep(downloader, r.recorder, logger),
		NewPurgeStep(purger, safelist, logger),
		NewAggregateStep(r.recorder, logger),
	)
	return p
}

func (r *Runner) safelist(site config.SiteSettings) (purge.Safelist, error) {
	extra, err := purge.NewSafelist(site.Safelist, site.SafelistPatterns)
	if err != nil {
		return purge.Safelist{}, err
	}
	if site.WordPressSafelist {
		return purge.WordPressSafelist().Merge(extra), nil
	}
	return extra, nil
}

func (r *Runner) maxBodySize() int64 {
	if r.cfg.MaxBodySize > 0 {
		return r.cfg.MaxBodySize
	}
	return config.DefaultMaxBodySize
}

// newRunID returns a time-ordered unique run identifier.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
