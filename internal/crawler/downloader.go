package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/nao1215/csstrim/internal/config"
	"github.com/nao1215/csstrim/internal/model"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrMalformedReference is recorded for a stylesheet reference that is not
// an absolute http(s) URL.
var ErrMalformedReference = errors.New("malformed stylesheet reference")

// DownloadReport is the outcome of DownloadAll.
type DownloadReport struct {
	// Assets holds the successfully downloaded stylesheets in reference order.
	Assets []model.StylesheetAsset

	// Skipped lists every reference that produced no asset.
	Skipped []model.SkippedStylesheet

	// Err combines the per-reference failures. It is informational only.
	Err error
}

// Downloader fetches stylesheets concurrently.
type Downloader struct {
	requestConfig

	// client performs the HTTP requests.
	client *http.Client

	// concurrency is the maximum number of downloads in flight.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloaderConcurrency sets the maximum number of parallel downloads.
func WithDownloaderConcurrency(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithDownloaderUserAgent sets the User-Agent header.
func WithDownloaderUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithDownloaderMaxBodySize limits how much of each stylesheet is read.
func WithDownloaderMaxBodySize(size int64) DownloaderOption {
	return func(d *Downloader) {
		d.maxBodySize = size
	}
}

// WithDownloaderHeaders sets extra request headers.
func WithDownloaderHeaders(headers map[string]string) DownloaderOption {
	return func(d *Downloader) {
		d.headers = headers
	}
}

// WithDownloaderCookie sets the Cookie header.
func WithDownloaderCookie(cookie string) DownloaderOption {
	return func(d *Downloader) {
		d.cookie = cookie
	}
}

// WithDownloaderLogger sets a custom logger.
func WithDownloaderLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader using client.
func NewDownloader(client *http.Client, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		requestConfig: defaultRequestConfig(),
		client:        client,
		concurrency:   config.DefaultDownloadConcurrency,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// slot is the per-reference outcome written by exactly one goroutine.
type slot struct {
	asset   *model.StylesheetAsset
	skipped *model.SkippedStylesheet
	err     error
}

// DownloadAll downloads every reference and waits for all of them before
// returning. A failing reference never aborts the others: it is recorded
// in Skipped and Err instead. The returned error is non-nil only when ctx
// ends before the downloads complete.
func (d *Downloader) DownloadAll(ctx context.Context, refs []string) (*DownloadReport, error) {
	slots := make([]slot, len(refs))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			css, err := d.download(ctx, ref)
			if err != nil {
				d.logger.Warn("stylesheet skipped",
					"href", ref,
					"error", err,
				)
				slots[i] = slot{
					skipped: &model.SkippedStylesheet{Href: ref, Reason: err.Error()},
					err:     fmt.Errorf("%s: %w", ref, err),
				}
				return nil
			}
			slots[i] = slot{asset: &model.StylesheetAsset{URL: ref, CSS: css}}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return an error

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &DownloadReport{
		Assets:  make([]model.StylesheetAsset, 0, len(refs)),
		Skipped: make([]model.SkippedStylesheet, 0),
	}
	ids := newIDAllocator()
	for _, s := range slots {
		switch {
		case s.asset != nil:
			asset := *s.asset
			asset.SourceID = ids.next(DeriveSourceID(asset.URL))
			report.Assets = append(report.Assets, asset)
		case s.skipped != nil:
			report.Skipped = append(report.Skipped, *s.skipped)
			report.Err = multierr.Append(report.Err, s.err)
		}
	}

	d.logger.Debug("stylesheets downloaded",
		"requested", len(refs),
		"downloaded", len(report.Assets),
		"skipped", len(report.Skipped),
	)

	return report, nil
}

// download fetches a single stylesheet.
func (d *Downloader) download(ctx context.Context, ref string) (string, error) {
	if !IsStylesheetURL(ref) {
		return "", ErrMalformedReference
	}

	req, err := d.newRequest(ctx, ref, "text/css,*/*;q=0.1")
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return d.readStylesheet(resp)
}

// IsStylesheetURL reports whether ref is an absolute http or https URL
// with a host.
func IsStylesheetURL(ref string) bool {
	if ref == "" || strings.ContainsAny(ref, " \t\r\n") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// DeriveSourceID derives a readable identifier from a stylesheet URL,
// e.g. "https://example.com/wp-content/themes/x/style.min.css?ver=6" gives
// "style-min". URLs without a usable file name get a random identifier.
func DeriveSourceID(ref string) string {
	if u, err := url.Parse(ref); err == nil {
		base := path.Base(u.Path)
		if ext := path.Ext(base); ext != "" {
			base = strings.TrimSuffix(base, ext)
		}
		if base != "/" && base != "." {
			if id := slug.Make(base); id != "" {
				return id
			}
		}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "stylesheet-" + uuid.NewString()
	}
	return "stylesheet-" + id.String()
}

// idAllocator hands out unique identifiers by suffixing repeats.
type idAllocator struct {
	seen map[string]int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{seen: make(map[string]int)}
}

// next returns base the first time and base-2, base-3, ... afterwards.
func (a *idAllocator) next(base string) string {
	for {
		a.seen[base]++
		n := a.seen[base]
		if n == 1 {
			return base
		}
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := a.seen[candidate]; !taken {
			a.seen[candidate] = 1
			return candidate
		}
	}
}
