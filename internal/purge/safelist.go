package purge

import (
	"fmt"
	"regexp"
	"slices"
)

// Safelist protects selectors from removal regardless of whether the page
// uses them. A selector is protected when any of its type, class or id
// names equals one of Names or matches one of Patterns.
type Safelist struct {
	// Names are exact selector names, e.g. "admin-bar".
	Names []string

	// Patterns are matched against each selector name.
	Patterns []*regexp.Regexp
}

// NewSafelist builds a Safelist from names and regular expression
// patterns. It fails on the first pattern that does not compile.
func NewSafelist(names, patterns []string) (Safelist, error) {
	s := Safelist{Names: slices.Clone(names)}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return Safelist{}, fmt.Errorf("invalid safelist pattern %q: %w", p, err)
		}
		s.Patterns = append(s.Patterns, re)
	}
	return s, nil
}

// Merge returns a Safelist holding the entries of s and other.
func (s Safelist) Merge(other Safelist) Safelist {
	return Safelist{
		Names:    append(slices.Clone(s.Names), other.Names...),
		Patterns: append(slices.Clone(s.Patterns), other.Patterns...),
	}
}

// IsEmpty reports whether s protects nothing.
func (s Safelist) IsEmpty() bool {
	return len(s.Names) == 0 && len(s.Patterns) == 0
}

// Matches reports whether selector is protected.
func (s Safelist) Matches(selector string) bool {
	if s.IsEmpty() {
		return false
	}
	for _, name := range selectorNames(selector) {
		if s.matchesName(name) {
			return true
		}
	}
	return false
}

func (s Safelist) matchesName(name string) bool {
	if slices.Contains(s.Names, name) {
		return true
	}
	for _, re := range s.Patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// wordPressNames are body and content classes WordPress adds at render
// time depending on the request, so a single static snapshot of a page
// rarely contains all of them.
var wordPressNames = []string{
	"rtl",
	"home",
	"blog",
	"archive",
	"date",
	"error404",
	"logged-in",
	"admin-bar",
	"no-customize-support",
	"custom-background",
	"wp-custom-logo",
	"alignnone",
	"alignright",
	"alignleft",
	"aligncenter",
	"alignwide",
	"alignfull",
	"wp-caption",
	"wp-caption-text",
	"screen-reader-text",
	"comment-list",
	"wp-social-link",
	"sticky",
	"bypostauthor",
	"gallery-caption",
}

var wordPressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^search(-.*)?$`),
	regexp.MustCompile(`^(.*)-template(-.*)?$`),
	regexp.MustCompile(`^(.*)?-?single(-.*)?$`),
	regexp.MustCompile(`^postid-(.*)?$`),
	regexp.MustCompile(`^attachmentid-(.*)?$`),
	regexp.MustCompile(`^attachment(-.*)?$`),
	regexp.MustCompile(`^page(-.*)?$`),
	regexp.MustCompile(`^(post-type-)?archive(-.*)?$`),
	regexp.MustCompile(`^author(-.*)?$`),
	regexp.MustCompile(`^category(-.*)?$`),
	regexp.MustCompile(`^tag(-.*)?$`),
	regexp.MustCompile(`^tax-(.*)?$`),
	regexp.MustCompile(`^term-(.*)?$`),
	regexp.MustCompile(`^(.*)?-?paged(-.*)?$`),
	regexp.MustCompile(`^wp-block-(.*)?$`),
	regexp.MustCompile(`^has-(.*)?$`),
	regexp.MustCompile(`^is-(.*)?$`),
}

// WordPressSafelist returns the safelist for classes generated by
// WordPress core and the block editor.
func WordPressSafelist() Safelist {
	return Safelist{
		Names:    slices.Clone(wordPressNames),
		Patterns: slices.Clone(wordPressPatterns),
	}
}
