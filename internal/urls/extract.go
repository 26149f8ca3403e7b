// Package urls finds candidate links in comment text and canonicalizes them.
package urls

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// MaxURLLength bounds a candidate before parsing and the normalized result
	MaxURLLength = 2000
	// MaxHostnameLength is the DNS limit for a full hostname
	MaxHostnameLength = 253
)

var (
	httpURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"\)]+`)
	bareURLPattern = regexp.MustCompile(`(?i)(?:(?:https?://)?(?:www\.)?[A-Za-z0-9.-]+\.[A-Za-z]{2,})(?:/[^\s<>"\)]*)?`)
	schemePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// ExtractURLs returns the unique normalized URLs found in text, in order of
// first appearance. Explicit http(s) links win; bare domains are only
// considered when the text has none.
func ExtractURLs(text string) []string {
	candidates := httpURLPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		candidates = bareURLPattern.FindAllString(text, -1)
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, candidate := range candidates {
		normalized, ok := NormalizeURL(candidate)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}

	return out
}

// NormalizeURL canonicalizes raw into an absolute http(s) URL without a
// fragment. Trailing sentence punctuation is kept as part of the path.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "<>")
	if raw == "" || len(raw) > MaxURLLength {
		return "", false
	}

	if scheme := schemePattern.FindString(raw); scheme != "" {
		switch strings.ToLower(scheme) {
		case "http://", "https://":
		default:
			return "", false
		}
	} else {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}

	host := parsed.Hostname()
	if host == "" || len(host) > MaxHostnameLength {
		return "", false
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	// The scheme prefix and percent-encoding can grow the candidate
	normalized := parsed.String()
	if len(normalized) > MaxURLLength {
		return "", false
	}

	return normalized, true
}

// Hostname returns the host portion of an already normalized URL
func Hostname(normalized string) string {
	parsed, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
