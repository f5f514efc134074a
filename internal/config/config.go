package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "csstrim"

	// DefaultTimeout is the deadline for one whole run: page fetch, every
	// stylesheet download and the purge. When it passes, outstanding
	// downloads are aborted and the workspace is released.
	DefaultTimeout = 60 * time.Second

	// DefaultRequestTimeout bounds a single HTTP request.
	DefaultRequestTimeout = 20 * time.Second

	// DefaultDownloadConcurrency is the number of stylesheets downloaded in
	// parallel within one run.
	DefaultDownloadConcurrency = 8

	// DefaultBatchSize is the number of targets processed concurrently by
	// the purge command.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies csstrim in HTTP requests.
	DefaultUserAgent = "csstrim/1.0 (+https://github.com/nao1215/csstrim)"

	// DefaultMaxBodySize limits the body read per response. Pages and
	// stylesheets larger than this are truncated.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultListenAddress is the address the HTTP server listens on.
	DefaultListenAddress = ":6969"

	// EnvUsername and EnvPassword name the environment variables holding
	// the server's basic auth credentials.
	EnvUsername = "CSSTRIM_USERNAME"
	EnvPassword = "CSSTRIM_PASSWORD" //nolint:gosec // variable name, not a credential
)

// Config holds all configuration options for csstrim.
// It is populated from CLI flags, the environment and the config file, and
// passed explicitly to the components that need it.
type Config struct {
	// Timeout is the deadline for one run.
	Timeout time.Duration

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// DownloadConcurrency is the number of parallel stylesheet downloads.
	DownloadConcurrency int

	// BatchSize is the number of targets processed concurrently.
	BatchSize int

	// FailOnNoStylesheets makes a page without any stylesheet link a failed
	// run. When false such a page produces an empty, successful result.
	FailOnNoStylesheets bool

	// WordPressSafelist enables the built-in WordPress class safelist.
	WordPressSafelist bool

	// Safelist holds extra selector names that always survive the purge.
	Safelist []string

	// SafelistPatterns holds regular expressions; a selector name matching
	// any of them always survives the purge.
	SafelistPatterns []string

	// WorkspaceDir is the parent directory for per-run workspaces.
	// Empty means the system temporary directory.
	WorkspaceDir string

	// ListenAddress is the address the HTTP server listens on.
	ListenAddress string

	// Username and Password are the server's basic auth credentials.
	// Authentication is disabled when both are empty.
	Username string
	Password string

	// Quiet discards all log output.
	Quiet bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches the log format from text to JSON.
	JSONLogs bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// TextReport selects the plain text report format.
	// JSON is used when neither MarkdownReport nor TextReport is set.
	TextReport bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the per-site configuration loaded from the config file.
	SiteConfigs *File

	// Targets is the list of targets to purge.
	Targets []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:             DefaultTimeout,
		RequestTimeout:      DefaultRequestTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		DownloadConcurrency: DefaultDownloadConcurrency,
		BatchSize:           DefaultBatchSize,
		FailOnNoStylesheets: true,
		WordPressSafelist:   true,
		ListenAddress:       DefaultListenAddress,
	}
}

// XDGConfigDir returns the XDG config directory for csstrim.
// On Linux: ~/.config/csstrim
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// LoadEnv fills the basic auth credentials from the environment when they
// are not already set.
func (c *Config) LoadEnv() {
	if v, ok := os.LookupEnv(EnvUsername); ok && c.Username == "" {
		c.Username = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok && c.Password == "" {
		c.Password = v
	}
}

// AuthEnabled reports whether the server requires basic auth.
func (c *Config) AuthEnabled() bool {
	return c.Username != "" || c.Password != ""
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	if c.DownloadConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MarkdownReport && c.TextReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Quiet && c.Verbose {
		return ErrConflictingLogLevels
	}
	return nil
}

// RequireTargets returns ErrNoTarget when no target was given.
func (c *Config) RequireTargets() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return nil
}

// SiteSettings is the effective per-target configuration: the global
// settings overlaid with the config file's defaults and site entry.
type SiteSettings struct {
	// Headers are extra HTTP headers for the page and stylesheet requests.
	Headers map[string]string

	// Cookie is sent with the page and stylesheet requests.
	Cookie string

	// Safelist and SafelistPatterns extend the purge safelist.
	Safelist         []string
	SafelistPatterns []string

	// WordPressSafelist enables the built-in WordPress safelist.
	WordPressSafelist bool

	// FailOnNoStylesheets is the zero-stylesheet policy for this target.
	FailOnNoStylesheets bool
}

// ForSite returns the effective settings for host.
func (c *Config) ForSite(host string) SiteSettings {
	s := SiteSettings{
		Safelist:            append([]string(nil), c.Safelist...),
		SafelistPatterns:    append([]string(nil), c.SafelistPatterns...),
		WordPressSafelist:   c.WordPressSafelist,
		FailOnNoStylesheets: c.FailOnNoStylesheets,
	}
	if c.SiteConfigs == nil {
		return s
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	s.Headers = site.Headers
	s.Cookie = site.Cookie
	s.Safelist = append(s.Safelist, site.Safelist...)
	s.SafelistPatterns = append(s.SafelistPatterns, site.SafelistPatterns...)
	if site.WordPressSafelist != nil {
		s.WordPressSafelist = *site.WordPressSafelist
	}
	if site.FailOnNoStylesheets != nil {
		s.FailOnNoStylesheets = *site.FailOnNoStylesheets
	}
	return s
}
