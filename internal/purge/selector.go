package purge

import (
	"strings"
	"unicode/utf8"
)

// structuralPseudo lists the pseudo-classes that depend only on the
// document tree and are therefore kept for matching. Every other
// pseudo-class or pseudo-element depends on user interaction, rendering or
// browser state and is removed.
var structuralPseudo = map[string]bool{
	"root":             true,
	"empty":            true,
	"first-child":      true,
	"last-child":       true,
	"only-child":       true,
	"first-of-type":    true,
	"last-of-type":     true,
	"only-of-type":     true,
	"nth-child":        true,
	"nth-last-child":   true,
	"nth-of-type":      true,
	"nth-last-of-type": true,
	"not":              true,
	"has":              true,
	"is":               true,
	"where":            true,
	"checked":          true,
	"disabled":         true,
	"enabled":          true,
	"link":             true,
}

// splitSelectorList splits a selector list on commas that are not nested
// in parentheses, brackets or strings.
func splitSelectorList(list string) []string {
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			if s := normalizeSelector(list[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := normalizeSelector(list[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// normalizeSelector collapses whitespace and removes the spaces around
// the child and sibling combinators, so that "ul  >\n li" becomes
// "ul>li" however the stylesheet was formatted.
func normalizeSelector(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	var (
		b     strings.Builder
		depth int
		quote byte
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && c == ' ':
			if i+1 < len(s) && isCombinator(s[i+1]) {
				continue
			}
			if i > 0 && isCombinator(s[i-1]) {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isCombinator(c byte) bool {
	return c == '>' || c == '+' || c == '~'
}

// matchableSelector returns sel with pseudo-elements and non-structural
// pseudo-classes removed. A compound left empty becomes "*".
func matchableSelector(sel string) string {
	var b strings.Builder
	b.Grow(len(sel))

	bracket := 0
	for i := 0; i < len(sel); {
		c := sel[i]
		switch {
		case c == '\\' && i+1 < len(sel):
			_, size := utf8.DecodeRuneInString(sel[i+1:])
			b.WriteString(sel[i : i+1+size])
			i += 1 + size
			continue
		case c == '[':
			bracket++
		case c == ']' && bracket > 0:
			bracket--
		case c == ':' && bracket == 0:
			end, name := readPseudo(sel, i)
			if structuralPseudo[name] {
				b.WriteString(sel[i:end])
			} else if compoundIsEmpty(b.String()) {
				b.WriteByte('*')
			}
			i = end
			continue
		}
		b.WriteByte(c)
		i++
	}
	return strings.TrimSpace(b.String())
}

// readPseudo reads the pseudo-class or pseudo-element starting at sel[i]
// (the first ':'), including a parenthesized argument. It returns the end
// offset and the lowercased name without colons.
func readPseudo(sel string, i int) (int, string) {
	j := i
	for j < len(sel) && sel[j] == ':' {
		j++
	}
	nameStart := j
	for j < len(sel) && isNameByte(sel[j]) {
		j++
	}
	name := strings.ToLower(sel[nameStart:j])

	if j < len(sel) && sel[j] == '(' {
		depth := 0
		for ; j < len(sel); j++ {
			switch sel[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				j++
				break
			}
		}
	}
	return j, name
}

// compoundIsEmpty reports whether the compound selector being built in
// prefix has no simple selector yet.
func compoundIsEmpty(prefix string) bool {
	if prefix == "" {
		return true
	}
	switch prefix[len(prefix)-1] {
	case ' ', '>', '+', '~', '(', ',':
		return true
	}
	return false
}

func isNameByte(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}

// selectorNames returns the type, class and id names used in sel, in
// order of appearance. Pseudo-class names and attribute selectors are not
// included; the arguments of functional pseudo-classes are.
func selectorNames(sel string) []string {
	var names []string

	atCompoundStart := true
	for i := 0; i < len(sel); {
		c := sel[i]
		switch {
		case c == '.' || c == '#':
			end, name := readName(sel, i+1)
			if name != "" {
				names = append(names, name)
			}
			i = end
			atCompoundStart = false
		case c == '[':
			for i < len(sel) && sel[i] != ']' {
				i++
			}
			i++
			atCompoundStart = false
		case c == ':':
			for i < len(sel) && sel[i] == ':' {
				i++
			}
			for i < len(sel) && isNameByte(sel[i]) {
				i++
			}
			atCompoundStart = false
		case c == ' ' || c == '>' || c == '+' || c == '~' || c == '(' || c == ',' || c == ')':
			i++
			atCompoundStart = c != ')'
		case atCompoundStart && (isNameByte(c) || c == '\\'):
			end, name := readName(sel, i)
			if name != "" {
				names = append(names, strings.ToLower(name))
			}
			i = end
			atCompoundStart = false
		default:
			i++
			atCompoundStart = false
		}
	}
	return names
}

// readName reads an identifier starting at sel[i], resolving backslash
// escapes, and returns the end offset and the unescaped name.
func readName(sel string, i int) (int, string) {
	var b strings.Builder
	for i < len(sel) {
		c := sel[i]
		if c == '\\' && i+1 < len(sel) {
			r, size := utf8.DecodeRuneInString(sel[i+1:])
			b.WriteRune(r)
			i += 1 + size
			continue
		}
		if !isNameByte(c) {
			break
		}
		b.WriteByte(c)
		i++
	}
	return i, b.String()
}
