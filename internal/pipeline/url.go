package pipeline

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL to avoid duplicates. It lowercases the
// scheme and host, removes default ports and fragments, and strips any
// trailing slash so that "https://x.test/a/" and "https://x.test/a" compare
// equal.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	return strings.TrimRight(u.String(), "/"), nil
}

// NormalizeKey is the forgiving variant used for map lookups: URLs that do
// not parse fall back to plain trailing-slash stripping.
func NormalizeKey(rawURL string) string {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(rawURL), "/")
	}
	return normalized
}

// ResolveRef resolves href against the page URL and normalizes the result.
// Only http(s) targets are returned.
func ResolveRef(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", resolved.Scheme)
	}
	return NormalizeURL(resolved.String())
}

// SummaryFilename derives the per-document result file name from a URL:
// host and path joined with underscores, always ending in ".txt".
func SummaryFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		name := strings.NewReplacer("/", "_", ":", "_").Replace(rawURL)
		return ensureTxt(name)
	}
	name := strings.ReplaceAll(u.Host+u.Path, "/", "_")
	return ensureTxt(name)
}

func ensureTxt(name string) string {
	if strings.HasSuffix(name, ".txt") {
		return name
	}
	return name + ".txt"
}
