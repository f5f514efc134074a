package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/metrics"
	"github.com/nao1215/csstrim/internal/pipeline"
	"github.com/nao1215/csstrim/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the purge pipeline over HTTP",
		Long: `Serve starts an HTTP server that runs the purge pipeline per request.

  GET  /         banner
  POST /         {"target": "example.com"} (JSON or form body)
  GET  /healthz  liveness probe
  GET  /metrics  prometheus metrics

POST / answers once with {"reductionFactor", "css"} or an error status.
When CSSTRIM_USERNAME or CSSTRIM_PASSWORD is set, POST / requires basic
auth with those credentials.

Examples:
  # Listen on the default port 6969
  csstrim serve

  # Listen on localhost only, with authentication
  CSSTRIM_USERNAME=admin CSSTRIM_PASSWORD=secret csstrim serve -l 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addRunFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address to listen on")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	if !cfg.AuthEnabled() {
		logger.Warn("basic auth disabled; set " + config.EnvUsername + " and " + config.EnvPassword + " to enable it")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	runner := pipeline.NewRunner(cfg,
		pipeline.WithRunnerLogger(logger),
		pipeline.WithRecorder(recorder),
	)
	srv := server.New(runner, cfg,
		server.WithLogger(logger),
		server.WithRecorder(recorder),
	)
	return srv.ListenAndServe(ctx)
}

// buildServeConfig adds the serve-specific flags and the credentials from
// the environment to the shared config.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
		return nil, err
	}
	cfg.LoadEnv()

	return cfg, nil
}
