// Package main provides the entry point for the csstrim CLI.
//
// csstrim fetches a web page, downloads the stylesheets it links, removes
// every rule the page does not use and reports how much smaller the css
// became.
//
// Usage:
//
//	csstrim purge <target>...
//	csstrim serve
//
// See --help for all available options.
package main

// main is the entry point for csstrim.
func main() {
	Execute()
}
