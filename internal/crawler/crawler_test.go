package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

// stubFetcher serves pages from a map keyed by normalized URL.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (pipeline.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	body, ok := f.pages[rawURL]
	f.mu.Unlock()
	if !ok {
		return pipeline.Page{}, fmt.Errorf("connection refused")
	}
	return pipeline.Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: 200,
		Body:       []byte(body),
	}, nil
}

// textExtractor returns the body unchanged.
type textExtractor struct{}

func (textExtractor) Extract(html, _ string) (string, error) { return html, nil }

func newTestCrawler(maxDepth int, fetcher pipeline.Fetcher) *Crawler {
	return New(
		Config{MaxDepth: maxDepth, MaxConcurrent: 3},
		fetcher,
		textExtractor{},
		NewLimiter(LimiterConfig{DefaultRPS: 0}),
		zap.NewNop(),
	)
}

func page(title string, links ...string) string {
	body := "<html><head><title>" + title + "</title></head><body>"
	for _, l := range links {
		body += `<a href="` + l + `">link</a>`
	}
	return body + "</body></html>"
}

func TestDiscoverDepthZero(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a": page("A", "https://x.test/a/b"),
	}}
	c := newTestCrawler(0, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "https://x.test/a", docs[0].URL)
	assert.Equal(t, "A", docs[0].Title)
	assert.Equal(t, 0, docs[0].Depth)
}

func TestDiscoverDepthOneFollowsLinks(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a":   page("A", "/a/b"),
		"https://x.test/a/b": page("B"),
	}}
	c := newTestCrawler(1, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://x.test/a", docs[0].URL)
	assert.Equal(t, "https://x.test/a/b", docs[1].URL)
	assert.Equal(t, 1, docs[1].Depth)
}

func TestDiscoverDepthOneFollowsSiblingLink(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a": page("A", "https://x.test/b"),
		"https://x.test/b": page("B"),
	}}
	c := newTestCrawler(1, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://x.test/a", docs[0].URL)
	assert.Equal(t, "https://x.test/b", docs[1].URL)
	assert.Equal(t, 1, docs[1].Depth)
}

func TestDiscoverDeduplicatesAcrossBranches(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a":   page("A", "/a/b", "/a/b/", "/a/c"),
		"https://x.test/a/b": page("B", "/a/c"),
		"https://x.test/a/c": page("C"),
	}}
	c := newTestCrawler(2, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	urls := make(map[string]int)
	for _, d := range docs {
		urls[d.URL]++
	}
	for u, n := range urls {
		assert.Equal(t, 1, n, "url %s fetched into manifest more than once", u)
	}
}

func TestDiscoverSkipsBlacklistedURLs(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a":        page("A", "/a/secret", "/a/b"),
		"https://x.test/a/b":      page("B"),
		"https://x.test/a/secret": page("Secret"),
	}}
	c := newTestCrawler(1, fetcher)
	bl := pipeline.NewBlacklist([]string{"https://x.test/a/secret/"})

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, bl)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.NotEqual(t, "https://x.test/a/secret", d.URL)
	}
}

func TestDiscoverAbandonsFailedBranch(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a":   page("A", "/a/dead", "/a/b"),
		"https://x.test/a/b": page("B"),
		// /a/dead is not served: the fetch fails.
	}}
	c := newTestCrawler(1, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/a"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestDiscoverStaysOnRootHost(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/docs":     page("Docs", "/docs/api", "https://x.test/blog", "https://other.test/"),
		"https://x.test/docs/api": page("API"),
		"https://x.test/blog":     page("Blog"),
		"https://other.test":      page("Other"),
	}}
	c := newTestCrawler(3, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://x.test/docs"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "https://x.test/docs", docs[0].URL)
	assert.Equal(t, "https://x.test/docs/api", docs[1].URL)
	assert.Equal(t, "https://x.test/blog", docs[2].URL)
	for _, call := range fetcher.calls {
		assert.NotContains(t, call, "other.test")
	}
}

func TestDiscoverMultipleRootsKeepRootOrder(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://a.test": page("A"),
		"https://b.test": page("B"),
	}}
	c := newTestCrawler(0, fetcher)

	docs, err := c.Discover(context.Background(), []string{"https://a.test/", "https://b.test/"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://a.test", docs[0].URL)
	assert.Equal(t, "https://b.test", docs[1].URL)
}

func TestDiscoverRejectsInvalidRoot(t *testing.T) {
	c := newTestCrawler(0, &stubFetcher{pages: map[string]string{}})
	_, err := c.Discover(context.Background(), []string{"not-a-url"}, nil)
	require.Error(t, err)

	_, err = c.Discover(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestFromArtifactSeedsWithoutExpansion(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://x.test/a": page("A", "/a/b"),
		"https://x.test/c": page("C"),
	}}
	c := newTestCrawler(5, fetcher)

	docs, err := c.FromArtifact(context.Background(), []string{"https://x.test/a", "https://x.test/c", "https://x.test/gone"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://x.test/a", docs[0].URL)
	assert.Equal(t, "https://x.test/c", docs[1].URL)

	// The link on page a was not followed.
	for _, call := range fetcher.calls {
		assert.NotEqual(t, "https://x.test/a/b", call)
	}
}
