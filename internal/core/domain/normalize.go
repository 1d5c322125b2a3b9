// Package domain turns user-supplied URLs into canonical bare hostnames.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDomain is returned when input cannot be read as a URL with a host.
var ErrInvalidDomain = errors.New("invalid domain")

// Normalize trims raw, assumes https when no scheme is present, and returns the
// lowercased hostname without a leading "www.". No network access occurs.
func Normalize(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidDomain)
	}

	if !hasHTTPScheme(cleaned) {
		cleaned = "https://" + cleaned
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}

	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidDomain, raw)
	}
	return host, nil
}

// FirstLabel returns the leftmost label of a hostname ("acme-plumbing" for "acme-plumbing.com").
func FirstLabel(domain string) string {
	label, _, _ := strings.Cut(strings.TrimSpace(domain), ".")
	return label
}

func hasHTTPScheme(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
