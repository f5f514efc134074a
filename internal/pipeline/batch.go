package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/csstrim/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one target in a batch.
type BatchResult struct {
	// Target is the target as given by the caller.
	Target string

	// Result is set when the run succeeded.
	Result *model.Result

	// Err is set when the run failed.
	Err error
}

// BatchProcessor runs several targets concurrently. Every target gets its
// own run and workspace; a failing target never stops the others.
type BatchProcessor struct {
	runner      *Runner
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor executing runs with runner.
func NewBatchProcessor(runner *Runner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		runner:      runner,
		concurrency: runner.cfg.BatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.concurrency <= 0 {
		bp.concurrency = 1
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every target and returns their outcomes in input
// order. The error is non-nil only when ctx ends before every run started.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(res BatchResult, index int) {
		results[index] = res
	})
	return results, err
}

// ProcessBatchWithCallback runs every target and calls callback as each
// run finishes. callback is called from the run's goroutine, at most once
// per index, so it must be safe for concurrent use across indexes.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(res BatchResult, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result, err := bp.runner.Run(ctx, target)
			if err != nil {
				bp.logger.Warn("target failed", "target", target, "error", err)
			}
			callback(BatchResult{Target: target, Result: result, Err: err}, i)

			// A failed run is recorded in its result; it does not cancel the batch.
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
