package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/csstrim/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseDocument builds the document tree for page from its markup.
//
// golang.org/x/net/html follows the HTML5 error recovery rules, so broken
// markup still yields a tree and parse errors are absorbed rather than
// reported. Anything that still goes wrong, including a panic inside the
// tree builder, is returned as model.ErrDocumentParse.
func ParseDocument(page *model.Page) (err error) {
	if page == nil {
		return fmt.Errorf("%w: no page", model.ErrDocumentParse)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", model.ErrDocumentParse, r)
		}
	}()

	root, err := html.Parse(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrDocumentParse, err)
	}
	if root == nil || root.FirstChild == nil {
		return fmt.Errorf("%w: empty document", model.ErrDocumentParse)
	}

	page.Root = root
	return nil
}

// ExtractStylesheetLinks builds the document tree of page when it has none
// yet and returns its stylesheet references. An empty result is not an
// error; a tree that cannot be built is model.ErrDocumentParse.
func ExtractStylesheetLinks(page *model.Page) ([]string, error) {
	if page == nil || page.Root == nil {
		if err := ParseDocument(page); err != nil {
			return nil, err
		}
	}

	p, err := NewParser(page.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: page url: %w", model.ErrDocumentParse, err)
	}
	return p.StylesheetLinks(page.Root), nil
}

// Parser extracts stylesheet references from a document tree.
type Parser struct {
	// baseURL is the URL of the page, used for resolving relative hrefs.
	baseURL *url.URL
}

// NewParser creates a Parser for a page served from baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// StylesheetLinks returns the href of every <link rel="stylesheet"> element
// in document order, resolved against the page URL or the document's
// <base href>. An href that cannot be resolved is returned unchanged so
// that the downloader can report it as malformed.
//
// A nil or linkless document yields an empty, non-nil slice.
func (p *Parser) StylesheetLinks(root *html.Node) []string {
	links := make([]string, 0)
	if root == nil {
		return links
	}

	base := p.baseURL
	if b := findBase(root); b != "" {
		if u, err := url.Parse(strings.TrimSpace(b)); err == nil {
			base = p.baseURL.ResolveReference(u)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Link && isStylesheetRel(getAttr(n, "rel")) {
			if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
				links = append(links, resolveURL(base, href))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return links
}

// isStylesheetRel reports whether a rel attribute names a stylesheet.
// rel is a space separated, case-insensitive token list; alternate
// stylesheets are not applied by default and are ignored.
func isStylesheetRel(rel string) bool {
	stylesheet := false
	for _, tok := range strings.Fields(strings.ToLower(rel)) {
		switch tok {
		case "stylesheet":
			stylesheet = true
		case "alternate":
			return false
		}
	}
	return stylesheet
}

// findBase returns the href of the first <base> element, if any.
func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Base {
		if href := getAttr(n, "href"); href != "" {
			return href
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBase(c); href != "" {
			return href
		}
	}
	return ""
}

// resolveURL resolves href against base, returning href unchanged when it
// does not parse.
func resolveURL(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
