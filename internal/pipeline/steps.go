package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/csstrim/internal/crawler"
	"github.com/nao1215/csstrim/internal/model"
	"github.com/nao1215/csstrim/internal/purge"
	"go.uber.org/multierr"
)

// PageFetcher retrieves the target page. crawler.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*model.Page, error)
}

// LinkExtractor returns the stylesheet references of a fetched page in
// document order.
type LinkExtractor interface {
	Extract(page *model.Page) ([]string, error)
}

// LinkExtractorFunc adapts a function to LinkExtractor.
type LinkExtractorFunc func(page *model.Page) ([]string, error)

// Extract implements LinkExtractor.
func (f LinkExtractorFunc) Extract(page *model.Page) ([]string, error) {
	return f(page)
}

// StylesheetDownloader retrieves stylesheets. crawler.Downloader implements it.
type StylesheetDownloader interface {
	DownloadAll(ctx context.Context, refs []string) (*crawler.DownloadReport, error)
}

// FetchStep retrieves the target page.
type FetchStep struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(fetcher PageFetcher, logger *slog.Logger) *FetchStep {
	return &FetchStep{fetcher: fetcher, logger: logger}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return "fetch" }

// State returns model.StateFetching.
func (s *FetchStep) State() model.State { return model.StateFetching }

// Do fetches the page and stages its markup.
func (s *FetchStep) Do(ctx context.Context, run *model.Run) error {
	page, err := s.fetcher.Fetch(ctx, run.Target.String())
	if err != nil {
		return ensureCause(err, model.ErrPageUnreachable)
	}
	run.Page = page

	if run.Workspace != nil {
		if err := run.Workspace.StagePage([]byte(page.HTML)); err != nil {
			return fmt.Errorf("%w: %w", model.ErrWorkspace, err)
		}
	}

	s.logger.Info("page fetched",
		"run_id", run.ID,
		"url", page.URL,
		"bytes", page.Size(),
	)
	return nil
}

// ExtractStep collects the stylesheet references of the page and applies
// the zero-stylesheet policy.
type ExtractStep struct {
	extractor           LinkExtractor
	failOnNoStylesheets bool
	logger              *slog.Logger
}

// NewExtractStep creates an ExtractStep. When failOnNoStylesheets is set, a
// page without stylesheet links fails the run with model.ErrNoStylesheets;
// otherwise the run continues and yields an empty result.
func NewExtractStep(extractor LinkExtractor, failOnNoStylesheets bool, logger *slog.Logger) *ExtractStep {
	return &ExtractStep{
		extractor:           extractor,
		failOnNoStylesheets: failOnNoStylesheets,
		logger:              logger,
	}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return "extract" }

// State returns model.StateExtracting.
func (s *ExtractStep) State() model.State { return model.StateExtracting }

// Do extracts the stylesheet links.
func (s *ExtractStep) Do(_ context.Context, run *model.Run) error {
	links, err := s.extractor.Extract(run.Page)
	if err != nil {
		return ensureCause(err, model.ErrDocumentParse)
	}
	run.StylesheetLinks = links

	if len(links) == 0 {
		if s.failOnNoStylesheets {
			return model.ErrNoStylesheets
		}
		s.logger.Info("page links no stylesheets", "run_id", run.ID)
		return nil
	}

	s.logger.Debug("stylesheet links extracted",
		"run_id", run.ID,
		"count", len(links),
	)
	return nil
}

// DownloadStep downloads every referenced stylesheet.
type DownloadStep struct {
	downloader StylesheetDownloader
	recorder   Recorder
	logger     *slog.Logger
}

// NewDownloadStep creates a DownloadStep.
func NewDownloadStep(downloader StylesheetDownloader, recorder Recorder, logger *slog.Logger) *DownloadStep {
	return &DownloadStep{downloader: downloader, recorder: recorder, logger: logger}
}

// Name returns the step name.
func (s *DownloadStep) Name() string { return "download" }

// State returns model.StateDownloading.
func (s *DownloadStep) State() model.State { return model.StateDownloading }

// Do downloads the stylesheets. Individual failures are recorded on the
// run; only an expired or cancelled context fails the step.
func (s *DownloadStep) Do(ctx context.Context, run *model.Run) error {
	if len(run.StylesheetLinks) == 0 {
		return nil
	}

	report, err := s.downloader.DownloadAll(ctx, run.StylesheetLinks)
	if err != nil {
		return err
	}

	run.Assets = report.Assets
	for _, sk := range report.Skipped {
		run.Skip(sk.Href, sk.Reason)
	}
	run.Diagnostics = multierr.Append(run.Diagnostics, report.Err)
	s.recorder.StylesheetsProcessed(len(report.Assets), len(report.Skipped))

	if run.Workspace != nil {
		for _, a := range run.Assets {
			if err := run.Workspace.StageStylesheet(a.SourceID, []byte(a.CSS)); err != nil {
				return fmt.Errorf("%w: %w", model.ErrWorkspace, err)
			}
		}
	}

	if len(report.Skipped) > 0 {
		s.logger.Warn("some stylesheets were skipped",
			"run_id", run.ID,
			"downloaded", len(report.Assets),
			"skipped", len(report.Skipped),
		)
	}
	return nil
}

// PurgeStep removes unused rules from the downloaded stylesheets.
type PurgeStep struct {
	purger   purge.Purger
	safelist purge.Safelist
	logger   *slog.Logger
}

// NewPurgeStep creates a PurgeStep.
func NewPurgeStep(purger purge.Purger, safelist purge.Safelist, logger *slog.Logger) *PurgeStep {
	return &PurgeStep{purger: purger, safelist: safelist, logger: logger}
}

// Name returns the step name.
func (s *PurgeStep) Name() string { return "purge" }

// State returns model.StatePurging.
func (s *PurgeStep) State() model.State { return model.StatePurging }

// Do purges every asset against the page markup.
func (s *PurgeStep) Do(ctx context.Context, run *model.Run) error {
	if len(run.Assets) == 0 {
		run.Results = []model.PurgeResult{}
		return nil
	}

	results, err := s.purger.Purge(ctx, []string{run.Page.HTML}, run.Assets, s.safelist)
	if err != nil {
		return ensureCause(err, model.ErrPurgeFailed)
	}
	run.Results = results

	if run.Workspace != nil {
		for _, r := range results {
			if err := run.Workspace.StagePurged(r.SourceID, []byte(r.CSS)); err != nil {
				return fmt.Errorf("%w: %w", model.ErrWorkspace, err)
			}
		}
	}
	return nil
}

// AggregateStep concatenates the purged css and computes the reduction.
type AggregateStep struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewAggregateStep creates an AggregateStep.
func NewAggregateStep(recorder Recorder, logger *slog.Logger) *AggregateStep {
	return &AggregateStep{recorder: recorder, logger: logger}
}

// Name returns the step name.
func (s *AggregateStep) Name() string { return "aggregate" }

// State returns model.StateAggregating.
func (s *AggregateStep) State() model.State { return model.StateAggregating }

// Do aggregates the run's purge results.
func (s *AggregateStep) Do(_ context.Context, run *model.Run) error {
	run.Aggregate()

	result := run.Result()
	s.recorder.BytesPurged(int64(result.OriginalSize()), int64(result.PurgedSize()))
	s.logger.Info("css aggregated",
		"run_id", run.ID,
		"stylesheets", len(run.Results),
		"original_bytes", result.OriginalSize(),
		"purged_bytes", result.PurgedSize(),
		"reduction", run.Reduction.Percent(),
	)
	return nil
}

// ensureCause wraps err with cause unless it already carries it or a
// context error.
func ensureCause(err, cause error) error {
	if errors.Is(err, cause) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}
