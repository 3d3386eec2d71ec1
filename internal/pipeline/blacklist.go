package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Blacklist is a set of normalized URLs that are never summarized and never
// appear in the final artifact, even when discovered by the crawler.
type Blacklist struct {
	urls map[string]struct{}
}

// NewBlacklist builds a Blacklist from raw URLs.
func NewBlacklist(urls []string) *Blacklist {
	b := &Blacklist{urls: make(map[string]struct{}, len(urls))}
	for _, raw := range urls {
		key := NormalizeKey(raw)
		if key == "" {
			continue
		}
		b.urls[key] = struct{}{}
	}
	return b
}

// LoadBlacklist reads a newline-delimited blacklist file. Blank lines and
// lines starting with '#' are ignored; trailing slashes are stripped before
// comparison.
func LoadBlacklist(path string) (*Blacklist, error) {
	if path == "" {
		return NewBlacklist(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blacklist %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read blacklist %s: %w", path, err)
	}
	return NewBlacklist(urls), nil
}

// Contains reports whether the URL is blacklisted.
func (b *Blacklist) Contains(rawURL string) bool {
	if b == nil || len(b.urls) == 0 {
		return false
	}
	_, ok := b.urls[NormalizeKey(rawURL)]
	return ok
}

// Len returns the number of blacklisted URLs.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.urls)
}

// URLs returns the normalized blacklist entries in sorted order.
func (b *Blacklist) URLs() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.urls))
	for u := range b.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
