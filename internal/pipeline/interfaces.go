package pipeline

import "context"

// Page is the raw result of fetching a URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetcher fetches a URL and returns the raw page. Implementations must
// follow redirects; errors are transient from the crawler's point of view.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Extractor converts raw HTML into normalized text.
type Extractor interface {
	Extract(html string, pageURL string) (string, error)
}

// Summarizer invokes a language model with a system prompt and page content.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, content string) (string, error)
}

// CheckpointStore is a durable URL -> result-file mapping used to skip
// already-processed URLs on resume.
type CheckpointStore interface {
	// Has reports whether url has a checkpoint entry whose target resolves.
	Has(url string) bool
	// Get returns the result filename for url, if present and resolvable.
	Get(url string) (string, bool)
	// Put records the result filename for url in memory.
	Put(url, filename string)
	// Flush durably persists the full mapping (atomic rewrite).
	Flush() error
}

// BlobStore persists named artifacts and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	// List returns the base names of objects directly under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
