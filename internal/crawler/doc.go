// Package crawler retrieves a target page and the stylesheets it links.
//
// # Components
//
//   - Fetcher: fetches the target page over HTTP and decodes it to text
//   - ParseDocument: builds the document tree from page markup
//   - Parser: walks the tree and extracts stylesheet references
//   - Downloader: downloads every stylesheet reference concurrently
//
// The fetcher treats any failure as fatal for the run. The downloader never
// does: a malformed reference or a failed download only excludes that one
// stylesheet, and all downloads are awaited before returning.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(httpClient)
//	page, err := fetcher.Fetch(ctx, target.String())
//	if err := crawler.ParseDocument(page); err != nil { ... }
//
//	parser, _ := crawler.NewParser(page.URL)
//	links := parser.StylesheetLinks(page.Root)
//
//	report, err := crawler.NewDownloader(httpClient).DownloadAll(ctx, links)
package crawler
