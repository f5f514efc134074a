package purge

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// itemKind distinguishes the entries of a parsed stylesheet.
type itemKind int

const (
	// rulesetItem is "selectors { declarations }".
	rulesetItem itemKind = iota
	// blockAtRuleItem is "@name prelude { items }".
	blockAtRuleItem
	// statementAtRuleItem is "@name prelude;".
	statementAtRuleItem
	// declarationItem is "property: value" inside a ruleset or an at-rule
	// block such as @font-face or @page.
	declarationItem
	// commentItem is a top-level "/*! ... */" comment, kept verbatim.
	commentItem
)

// item is one node of a parsed stylesheet.
type item struct {
	kind itemKind

	// name is the lowercased at-rule name including "@".
	name string

	// prelude is the at-rule prelude.
	prelude string

	// selectors are the selectors of a ruleset.
	selectors []string

	// declaration is the "property:value" text of a declarationItem, or
	// the text of a commentItem.
	declaration string

	// children are the items of an at-rule block, or the body of a
	// ruleset: declarations and nested rules in source order.
	children []*item
}

// conditionalGroups are at-rules whose blocks contain ordinary rulesets
// that apply only under a condition. Their rulesets are purged like
// top-level rules.
var conditionalGroups = map[string]bool{
	"@media":          true,
	"@supports":       true,
	"@container":      true,
	"@layer":          true,
	"@document":       true,
	"@-moz-document":  true,
	"@scope":          true,
	"@starting-style": true,
}

// parseStylesheet parses CSS text into a list of items. Comments are
// discarded except top-level "/*!" comments, which conventionally carry
// license text. Syntax errors are skipped the way a browser would; the only
// errors returned come from the input itself.
func parseStylesheet(data []byte) ([]*item, error) {
	p := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	items, err := parseItems(p, false)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return items, nil
}

// parseItems reads items until the end of the enclosing at-rule block
// (inBlock) or the end of input.
func parseItems(p *css.Parser, inBlock bool) ([]*item, error) {
	var (
		items   []*item
		grouped []string
	)

	for {
		gt, _, data := p.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil {
				return items, err
			}
			// Invalid construct: drop it and continue.

		case css.EndAtRuleGrammar:
			if inBlock {
				return items, nil
			}

		case css.CommentGrammar:
			if !inBlock && bytes.HasPrefix(data, []byte("/*!")) {
				items = append(items, &item{kind: commentItem, declaration: string(data)})
			}

		case css.AtRuleGrammar:
			items = append(items, &item{
				kind:    statementAtRuleItem,
				name:    strings.ToLower(string(data)),
				prelude: tokensText(p.Values()),
			})

		case css.BeginAtRuleGrammar:
			at := &item{
				kind:    blockAtRuleItem,
				name:    strings.ToLower(string(data)),
				prelude: tokensText(p.Values()),
			}
			children, err := parseItems(p, true)
			at.children = children
			items = append(items, at)
			if err != nil {
				return items, err
			}

		case css.QualifiedRuleGrammar:
			grouped = append(grouped, string(data)+tokensText(p.Values()))

		case css.BeginRulesetGrammar:
			grouped = append(grouped, string(data)+tokensText(p.Values()))
			rs := &item{
				kind:      rulesetItem,
				selectors: splitSelectorList(strings.Join(grouped, ",")),
			}
			grouped = nil

			body, err := parseRulesetBody(p)
			rs.children = body
			items = append(items, rs)
			if err != nil {
				return items, err
			}

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if inBlock {
				items = append(items, &item{
					kind:        declarationItem,
					declaration: declarationText(data, p.Values()),
				})
			}
		}
	}
}

// parseRulesetBody reads the body of a ruleset until its closing brace.
// Nested rulesets and at-rules (CSS nesting) are parsed recursively and
// stay in place between the declarations.
func parseRulesetBody(p *css.Parser) ([]*item, error) {
	var body []*item
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil {
				return body, err
			}

		case css.EndRulesetGrammar:
			return body, nil

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			body = append(body, &item{
				kind:        declarationItem,
				declaration: declarationText(data, p.Values()),
			})

		case css.BeginRulesetGrammar:
			nested := &item{
				kind:      rulesetItem,
				selectors: splitSelectorList(string(data) + tokensText(p.Values())),
			}
			children, err := parseRulesetBody(p)
			nested.children = children
			body = append(body, nested)
			if err != nil {
				return body, err
			}

		case css.AtRuleGrammar:
			body = append(body, &item{
				kind:    statementAtRuleItem,
				name:    strings.ToLower(string(data)),
				prelude: tokensText(p.Values()),
			})

		case css.BeginAtRuleGrammar:
			at := &item{
				kind:    blockAtRuleItem,
				name:    strings.ToLower(string(data)),
				prelude: tokensText(p.Values()),
			}
			children, err := parseItems(p, true)
			at.children = children
			body = append(body, at)
			if err != nil {
				return body, err
			}
		}
	}
}

func declarationText(property []byte, values []css.Token) string {
	return string(property) + ":" + tokensText(values)
}

// tokensText renders tokens with whitespace collapsed to single spaces and
// comments removed.
func tokensText(tokens []css.Token) string {
	var b strings.Builder
	pendingSpace := false
	for _, t := range tokens {
		switch t.TokenType {
		case css.WhitespaceToken:
			pendingSpace = true
			continue
		case css.CommentToken:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.Write(t.Data)
	}
	return b.String()
}

// writeItems serializes items as compact CSS. Top-level items end with a
// newline so that concatenated outputs stay one rule per line.
func writeItems(w *strings.Builder, items []*item, topLevel bool) {
	for _, it := range items {
		switch it.kind {
		case rulesetItem:
			w.WriteString(strings.Join(it.selectors, ","))
			w.WriteByte('{')
			writeRulesetBody(w, it.children)
			w.WriteByte('}')
		case blockAtRuleItem:
			writeAtRuleHead(w, it)
			w.WriteByte('{')
			writeItems(w, it.children, false)
			w.WriteByte('}')
		case statementAtRuleItem:
			writeAtRuleHead(w, it)
			w.WriteByte(';')
		case declarationItem:
			w.WriteString(it.declaration)
			w.WriteByte(';')
		case commentItem:
			w.WriteString(it.declaration)
		}
		if topLevel {
			w.WriteByte('\n')
		}
	}
}

// writeRulesetBody writes declarations separated by ";" without a trailing
// one, and nested rules in place.
func writeRulesetBody(w *strings.Builder, body []*item) {
	for i, it := range body {
		if i > 0 && body[i-1].kind == declarationItem {
			w.WriteByte(';')
		}
		if it.kind == declarationItem {
			w.WriteString(it.declaration)
			continue
		}
		writeItems(w, []*item{it}, false)
	}
}

func writeAtRuleHead(w *strings.Builder, it *item) {
	w.WriteString(it.name)
	if it.prelude != "" {
		w.WriteByte(' ')
		w.WriteString(it.prelude)
	}
}
