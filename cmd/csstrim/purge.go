package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/pipeline"
	"github.com/nao1215/csstrim/internal/report"
	"github.com/spf13/cobra"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <target>...",
		Short: "Purge unused CSS for one or more pages",
		Long: `Purge fetches each target page over https, downloads the stylesheets it
links, removes the rules the page does not use and prints the result.

A target is a bare host with an optional path; any scheme given is replaced
by https. Every target gets its own run and workspace, so one failing
target never affects the others.

Examples:
  # Purge a single page and print {reductionFactor, css} as JSON
  csstrim purge example.com

  # Purge several pages, four at a time
  csstrim purge -b 4 example.com example.org/blog/

  # Write a Markdown report to a file
  csstrim purge --markdown -o report.md example.com

  # Keep selectors the page adds at runtime
  csstrim purge --safelist is-open --safelist-pattern '^js-' example.com

Configuration file (.csstrim) example:
  defaults:
    safelist: ["is-active"]
  sites:
    example.com:
      cookie: "session_id=abc123"
      safelistPatterns: ["^modal-"]`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPurgeCmd,
	}

	addRunFlags(cmd)

	// Batch processing flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets processed concurrently")

	// Report flags
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --text)")
	cmd.Flags().Bool("text", false,
		"Output plain text report (mutually exclusive with --markdown)")
	cmd.Flags().Bool("details", false,
		"Include run metadata and per-stylesheet sizes in JSON output")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runPurgeCmd executes the purge command.
func runPurgeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildPurgeConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.RequireTargets(); err != nil {
		return err
	}

	details, err := cmd.Flags().GetBool("details")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output, closeOutput, err := openOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg, output, details)
	return runPurge(ctx, cfg, writer, logger,
		pipeline.WithRunnerLogger(logger),
	)
}

// buildPurgeConfig adds the purge-specific flags to the shared config.
func buildPurgeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.TextReport, err = cmd.Flags().GetBool("text"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// runPurge processes every target and writes one report entry per target
// in completion order. It returns an error when any target failed.
func runPurge(ctx context.Context, cfg *config.Config, writer report.Writer, logger *slog.Logger, opts ...pipeline.RunnerOption) error {
	runner := pipeline.NewRunner(cfg, opts...)
	bp := pipeline.NewBatchProcessor(runner,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu       sync.Mutex
		failed   int
		writeErr error
	)
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(res pipeline.BatchResult, _ int) {
		mu.Lock()
		defer mu.Unlock()

		var werr error
		if res.Err != nil {
			failed++
			_, werr = writer.WriteFailure(res.Target, res.Err)
		} else {
			_, werr = writer.Write(res.Result)
		}
		if werr != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to write report: %w", werr)
		}
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(cfg.Targets))
	}
	return nil
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(cfg *config.Config, output io.Writer, details bool) report.Writer {
	switch {
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.TextReport:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	case details:
		return report.NewJSONWriter(output, report.WithDetails(getVersion()))
	default:
		return report.NewJSONWriter(output)
	}
}

// openOutput opens the report destination. The returned func closes it.
func openOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Purged css may come from pages behind authentication, so the report
	// is only readable by the owner.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // write errors surface from the writer
}
