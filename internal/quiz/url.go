package quiz

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin returns the scheme://host portion of a URL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host)), nil
}

// ExpandPlaceholders substitutes the quiz pages' templating markers.
// "{origin}" and the literal origin span placeholder collapse to the page
// origin; "$EMAIL" expands to the configured identity email.
func ExpandPlaceholders(s, origin, email string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "{origin}", origin)
	s = strings.ReplaceAll(s, `<span class="origin"></span>`, origin)
	s = strings.ReplaceAll(s, "[origin]", origin)
	s = strings.ReplaceAll(s, "$EMAIL", email)
	return s
}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, and sorts query parameters.
// It also removes fragments.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// IsHTTPURL reports whether s is an absolute http(s) URL.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
