package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/nao1215/csstrim/internal/config"
	"golang.org/x/net/html/charset"
)

// requestConfig holds the request settings shared by Fetcher and Downloader.
type requestConfig struct {
	// userAgent is the User-Agent header sent with every request.
	userAgent string

	// maxBodySize limits the number of body bytes read per response.
	maxBodySize int64

	// cookie is sent as the Cookie header when set.
	cookie string

	// headers are extra request headers.
	headers map[string]string
}

func defaultRequestConfig() requestConfig {
	return requestConfig{
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
	}
}

// newRequest builds a GET request carrying the configured headers.
func (c requestConfig) newRequest(ctx context.Context, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	return req, nil
}

// readRaw reads at most maxBodySize bytes of resp.
func (c requestConfig) readRaw(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// readPage reads an HTML page and decodes it to UTF-8 using the declared
// or sniffed charset, as a browser would.
func (c requestConfig) readPage(resp *http.Response) (string, error) {
	body, err := c.readRaw(resp)
	if err != nil {
		return "", err
	}

	reader, err := charset.NewReader(bytes.NewReader(body), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}

// readStylesheet reads a stylesheet and decodes it to UTF-8.
func (c requestConfig) readStylesheet(resp *http.Response) (string, error) {
	body, err := c.readRaw(resp)
	if err != nil {
		return "", err
	}
	return decodeStylesheet(body, resp.Header.Get("Content-Type"))
}

// Byte order marks recognized in stylesheets.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// atCharsetPrefix starts an @charset rule; it must be the first bytes of
// the stylesheet to count.
var atCharsetPrefix = []byte(`@charset "`)

// decodeStylesheet determines the stylesheet encoding in CSS order: byte
// order mark, Content-Type charset, @charset rule, then UTF-8. Unlike
// HTML there is no content sniffing, so undeclared bytes are kept as they
// are.
func decodeStylesheet(body []byte, contentType string) (string, error) {
	switch {
	case bytes.HasPrefix(body, bomUTF8):
		return string(body[len(bomUTF8):]), nil
	case bytes.HasPrefix(body, bomUTF16BE):
		return decodeLabel(body[len(bomUTF16BE):], "utf-16be")
	case bytes.HasPrefix(body, bomUTF16LE):
		return decodeLabel(body[len(bomUTF16LE):], "utf-16le")
	}

	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if label := params["charset"]; label != "" {
			if enc, _ := charset.Lookup(label); enc != nil {
				return decodeLabel(body, label)
			}
		}
	}

	if label := atCharsetLabel(body); label != "" {
		// A stylesheet that declares UTF-16 in ASCII is really ASCII
		// compatible; browsers read it as UTF-8.
		lower := strings.ToLower(label)
		if lower != "utf-16be" && lower != "utf-16le" {
			if enc, _ := charset.Lookup(label); enc != nil {
				return decodeLabel(body, label)
			}
		}
	}

	return string(body), nil
}

// atCharsetLabel returns the label of a leading @charset rule, if any.
func atCharsetLabel(body []byte) string {
	if !bytes.HasPrefix(body, atCharsetPrefix) {
		return ""
	}
	rest := body[len(atCharsetPrefix):]
	end := bytes.Index(rest, []byte(`";`))
	if end <= 0 {
		return ""
	}
	return string(rest[:end])
}

func decodeLabel(body []byte, label string) (string, error) {
	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(decoded), nil
}

// isSuccess reports whether code is a 2xx status.
func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
