// Package report writes run results.
//
// Writers for each output format:
//   - JSONWriter: the {reductionFactor, css} contract, optionally with run
//     details, for tool integration
//   - MarkdownWriter: tables and a mermaid chart for documentation
//   - SimpleWriter: plain text for terminal display
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
