// Package crawler discovers site pages by bounded breadth-first expansion
// from a set of root URLs.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

// Config controls discovery behavior.
type Config struct {
	// MaxDepth bounds expansion: depth 0 is the root page only.
	MaxDepth int
	// MaxConcurrent bounds in-flight page fetches across all roots.
	MaxConcurrent int
}

// Crawler expands root URLs into a deduplicated, ordered document set.
type Crawler struct {
	cfg       Config
	fetcher   pipeline.Fetcher
	extractor pipeline.Extractor
	limiter   *Limiter
	logger    *zap.Logger

	sem *semaphore.Weighted

	mu      sync.Mutex
	visited map[string]struct{}
}

// New builds a Crawler. The fetch semaphore is shared by every page fetch,
// across roots and depths, so total network concurrency never exceeds
// cfg.MaxConcurrent.
func New(cfg Config, fetcher pipeline.Fetcher, extractor pipeline.Extractor, limiter *Limiter, logger *zap.Logger) *Crawler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   limiter,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		visited:   make(map[string]struct{}),
	}
}

// Discover expands every root breadth-first up to MaxDepth. Roots run
// concurrently; results keep root order, then per-root discovery order.
// Blacklisted and already-visited URLs are dropped. A failed page fetch
// abandons that branch only.
func (c *Crawler) Discover(ctx context.Context, roots []string, blacklist *pipeline.Blacklist) ([]pipeline.Document, error) {
	normalized := make([]string, 0, len(roots))
	for _, root := range roots {
		u, err := pipeline.NormalizeURL(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root url %q: %w", root, err)
		}
		normalized = append(normalized, u)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("no root urls provided")
	}

	perRoot := make([][]pipeline.Document, len(normalized))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range normalized {
		g.Go(func() error {
			docs, err := c.expandRoot(gctx, root, blacklist)
			if err != nil {
				return err
			}
			perRoot[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []pipeline.Document
	for _, docs := range perRoot {
		all = append(all, docs...)
	}
	c.logger.Info("discovery complete",
		zap.Int("roots", len(normalized)),
		zap.Int("documents", len(all)),
	)
	return all, nil
}

// expandRoot walks one root level by level. Within a level, fetches run
// concurrently (under the shared semaphore) but results are appended in
// frontier order so discovery order is deterministic.
func (c *Crawler) expandRoot(ctx context.Context, root string, blacklist *pipeline.Blacklist) ([]pipeline.Document, error) {
	type fetched struct {
		doc   *pipeline.Document
		links []string
	}

	var docs []pipeline.Document
	rootHost := hostOf(root)
	frontier := []string{root}
	for depth := 0; depth <= c.cfg.MaxDepth && len(frontier) > 0; depth++ {
		claimed := make([]string, 0, len(frontier))
		for _, u := range frontier {
			if blacklist.Contains(u) {
				c.logger.Debug("skipping blacklisted url", zap.String("url", u))
				continue
			}
			if c.claim(u) {
				claimed = append(claimed, u)
			}
		}

		results := make([]fetched, len(claimed))
		g, gctx := errgroup.WithContext(ctx)
		for i, u := range claimed {
			g.Go(func() error {
				doc, links, err := c.fetchPage(gctx, u, depth)
				if err != nil {
					// Branch abandoned; the crawl continues.
					c.logger.Warn("page fetch failed, abandoning branch",
						zap.String("url", u),
						zap.Int("depth", depth),
						zap.Error(err),
					)
					return nil
				}
				results[i] = fetched{doc: doc, links: links}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, res := range results {
			if res.doc == nil {
				continue
			}
			docs = append(docs, *res.doc)
			for _, link := range res.links {
				if hostOf(link) == rootHost {
					frontier = append(frontier, link)
				}
			}
		}
	}
	return docs, nil
}

// claim marks url visited, returning false if another branch got there first.
func (c *Crawler) claim(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.visited[url]; ok {
		return false
	}
	c.visited[url] = struct{}{}
	return true
}

func (c *Crawler) fetchPage(ctx context.Context, url string, depth int) (*pipeline.Document, []string, error) {
	if err := c.limiter.Wait(ctx, url); err != nil {
		return nil, nil, err
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquire fetch slot: %w", err)
	}
	page, err := c.fetcher.Fetch(ctx, url)
	c.sem.Release(1)
	if err != nil {
		return nil, nil, err
	}
	if page.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("status %d", page.StatusCode)
	}

	content, err := c.extractor.Extract(string(page.Body), url)
	if err != nil {
		return nil, nil, fmt.Errorf("extract content: %w", err)
	}
	links, err := ExtractLinks(page.Body, url)
	if err != nil {
		c.logger.Warn("link extraction failed", zap.String("url", url), zap.Error(err))
		links = nil
	}

	title := PageTitle(page.Body)
	if title == "" {
		title = url
	}
	return &pipeline.Document{
		URL:     url,
		Title:   title,
		Content: content,
		Depth:   depth,
	}, links, nil
}

// FromArtifact seeds the document set from a prior artifact's URLs: each URL
// is re-fetched and re-extracted with no link expansion. Unreachable URLs are
// dropped with a warning, matching crawl-branch failure handling.
func (c *Crawler) FromArtifact(ctx context.Context, urls []string, blacklist *pipeline.Blacklist) ([]pipeline.Document, error) {
	docs := make([]*pipeline.Document, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range urls {
		u := pipeline.NormalizeKey(raw)
		if blacklist.Contains(u) || !c.claim(u) {
			continue
		}
		g.Go(func() error {
			doc, _, err := c.fetchPage(gctx, u, 0)
			if err != nil {
				c.logger.Warn("artifact url fetch failed, dropping",
					zap.String("url", u),
					zap.Error(err),
				)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []pipeline.Document
	for _, doc := range docs {
		if doc != nil {
			out = append(out, *doc)
		}
	}
	return out, nil
}

// hostOf returns the URL's host, or "" when it does not parse. Expansion is
// bounded to the root's host: sibling paths on the same site are followed,
// cross-host links are dropped.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
