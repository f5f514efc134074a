package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/csstrim/internal/model"
)

// Fetcher retrieves the target page.
type Fetcher struct {
	requestConfig

	// client performs the HTTP requests.
	client *http.Client

	// logger for structured logging.
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithFetcherMaxBodySize limits how much of the page is read.
func WithFetcherMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithFetcherHeaders sets extra request headers.
func WithFetcherHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithFetcherCookie sets the Cookie header.
func WithFetcherCookie(cookie string) FetcherOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher using client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		requestConfig: defaultRequestConfig(),
		client:        client,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch issues a single GET for pageURL and returns the decoded page.
// Network failures and non-2xx responses are reported as
// model.ErrPageUnreachable. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	req, err := f.newRequest(ctx, pageURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPageUnreachable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPageUnreachable, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", model.ErrPageUnreachable, resp.StatusCode, pageURL)
	}

	body, err := f.readPage(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPageUnreachable, err)
	}

	f.logger.Debug("page fetched",
		"url", pageURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &model.Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		HTML:        body,
	}, nil
}
