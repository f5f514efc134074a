package model

import (
	"net/url"
	"strings"
)

// secureScheme is the scheme every target is fetched over.
const secureScheme = "https"

// Target is a normalized target reference. It is immutable once built and
// is the only form of the caller's input that may reach the network.
type Target struct {
	raw string
	url *url.URL
}

// NormalizeTarget turns a bare host (optionally with a path) into a Target.
// Any scheme the caller supplied is discarded and replaced by https.
//
// Returns ErrInvalidTarget when the input is empty, contains whitespace,
// or has no host.
func NormalizeTarget(raw string) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Target{}, ErrInvalidTarget
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return Target{}, ErrInvalidTarget
	}

	// Drop an explicit scheme; the caller is expected to send a bare host
	// but browsers and shells often paste a full URL.
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	trimmed = strings.TrimPrefix(trimmed, "//")

	u, err := url.Parse(secureScheme + "://" + trimmed)
	if err != nil {
		return Target{}, ErrInvalidTarget
	}
	if u.Hostname() == "" || u.User != nil {
		return Target{}, ErrInvalidTarget
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return Target{raw: raw, url: u}, nil
}

// String returns the fully qualified URL.
func (t Target) String() string {
	if t.url == nil {
		return ""
	}
	return t.url.String()
}

// URL returns a copy of the normalized URL.
func (t Target) URL() *url.URL {
	if t.url == nil {
		return nil
	}
	u := *t.url
	return &u
}

// Host returns the lowercased host (with port, if any).
func (t Target) Host() string {
	if t.url == nil {
		return ""
	}
	return t.url.Host
}

// Raw returns the value the caller originally supplied.
func (t Target) Raw() string {
	return t.raw
}

// IsZero reports whether the Target was never normalized.
func (t Target) IsZero() bool {
	return t.url == nil
}
