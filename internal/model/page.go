package model

import "golang.org/x/net/html"

// Page is the fetched target page.
// It holds both the raw HTML, which the purge engine uses as its usage
// reference, and the parsed tree the link extractor walks.
type Page struct {
	// URL is the final URL the page was fetched from.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type"`

	// HTML is the decoded page markup.
	HTML string `json:"-"`

	// Root is the parsed document tree. Nil until the document is built.
	Root *html.Node `json:"-"`
}

// Size returns the size of the page markup in bytes.
func (p *Page) Size() int {
	if p == nil {
		return 0
	}
	return len(p.HTML)
}
