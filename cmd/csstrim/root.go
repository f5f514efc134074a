package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/csstrim/internal/config"
	csslog "github.com/nao1215/csstrim/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for csstrim.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csstrim",
		Short: "Remove unused CSS from the stylesheets a page links",
		Long: `csstrim fetches a web page, downloads every stylesheet it links, removes
the rules no element of the page matches and reports the reduction factor
together with the purged css.

Use "csstrim purge" for one-off runs and "csstrim serve" to expose the same
pipeline over HTTP.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Discard all log output")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .csstrim in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addRunFlags registers the flags shared by every command that executes runs.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for one whole run")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Int("concurrency", config.DefaultDownloadConcurrency,
		"Number of stylesheets downloaded in parallel per run")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for page and stylesheet requests")
	cmd.Flags().String("workspace-dir", "",
		"Parent directory for per-run workspaces (default: system temp dir)")
	cmd.Flags().StringSlice("safelist", nil,
		"Selector names that always survive the purge")
	cmd.Flags().StringSlice("safelist-pattern", nil,
		"Regular expressions for selector names that always survive the purge")
	cmd.Flags().Bool("no-wordpress-safelist", false,
		"Disable the built-in WordPress class safelist")
	cmd.Flags().Bool("allow-empty", false,
		"Succeed with an empty result when the page links no stylesheets")
}

// buildConfig creates a Config from the global flags, the run flags and
// the configuration file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	flags := cmd.Flags()

	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	if cfg.JSONLogs, err = flags.GetBool("json-logs"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
		return nil, err
	}
	if cfg.DownloadConcurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.WorkspaceDir, err = flags.GetString("workspace-dir"); err != nil {
		return nil, err
	}
	if cfg.Safelist, err = flags.GetStringSlice("safelist"); err != nil {
		return nil, err
	}
	if cfg.SafelistPatterns, err = flags.GetStringSlice("safelist-pattern"); err != nil {
		return nil, err
	}

	noWordPress, err := flags.GetBool("no-wordpress-safelist")
	if err != nil {
		return nil, err
	}
	cfg.WordPressSafelist = !noWordPress

	allowEmpty, err := flags.GetBool("allow-empty")
	if err != nil {
		return nil, err
	}
	cfg.FailOnNoStylesheets = !allowEmpty

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file into cfg.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.SiteConfigs = siteConfigs
	return nil
}

// setupLogger creates the logger for a command.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return csslog.NewLogger(w, csslog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLogs,
		Quiet:   cfg.Quiet,
	})
}
