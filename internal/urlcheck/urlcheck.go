// Package urlcheck is a heuristic filter for submitted resource URLs. It is
// not a security boundary.
package urlcheck

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern  = regexp.MustCompile(`^(https?://)?([\w-]+\.)+[\w-]+(/[\w .?%&=~+#:,;@!*'()/-]*)?$`)
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	extraSlash  = regexp.MustCompile(`([^:]/)/+`)
)

var knownTLDs = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "edu": {}, "gov": {}, "mil": {}, "int": {},
	"ar": {}, "br": {}, "cl": {}, "co": {}, "es": {}, "mx": {}, "pe": {}, "us": {},
	"uk": {}, "de": {}, "fr": {}, "it": {}, "jp": {},
	"io": {}, "dev": {}, "app": {}, "ai": {},
}

// IsValid reports whether s looks like an http(s) URL with a plausible host.
// A missing scheme is read as https.
func IsValid(s string) bool {
	s = strings.TrimSpace(s)
	if !urlPattern.MatchString(s) {
		return false
	}

	u, err := url.Parse(withScheme(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if !strings.Contains(host, ".") {
		return false
	}
	if ipv4Pattern.MatchString(host) {
		return false
	}

	labels := strings.Split(host, ".")
	tld := strings.ToLower(labels[len(labels)-1])
	if _, ok := knownTLDs[tld]; !ok {
		if len(tld) < 2 || len(tld) > 10 {
			return false
		}
	}
	return true
}

// Normalize produces the form used to compare URLs: https, no credentials,
// no fragment, no trailing or doubled slashes. Unparseable input is returned
// trimmed but otherwise unchanged.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	u, err := url.Parse(withScheme(s))
	if err != nil || u.Host == "" {
		return s
	}

	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""

	return extraSlash.ReplaceAllString(u.String(), "$1")
}

// HasDuplicates reports whether two non-blank entries normalize to the same URL.
func HasDuplicates(urls []string) bool {
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n := Normalize(raw)
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

// Clean drops blank entries and trims whitespace, preserving order.
func Clean(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func withScheme(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://" + s
}
