// Package purge removes CSS rules that a page does not use.
//
// Engine implements Purger. For every stylesheet it walks the CSS grammar
// (github.com/tdewolff/parse/v2/css), matches each selector of every
// ruleset against the page DOM (goquery with cascadia selectors) and
// re-emits only the selectors that match at least one element or that the
// Safelist protects. Rulesets left without selectors are dropped, as are
// conditional group rules (@media, @supports, ...) left without rules.
//
// Matching is conservative. Dynamic pseudo-classes and pseudo-elements are
// removed before matching, so "a:hover" survives whenever an <a> exists,
// and a selector the matcher cannot compile is always kept. Nested rules
// follow their parent ruleset unchanged.
package purge
