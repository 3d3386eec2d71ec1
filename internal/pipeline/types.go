// Package pipeline defines core types shared across subsystems.
package pipeline

import "time"

// OutputFormat selects the serialization of per-document records and the
// final artifact.
type OutputFormat string

// Supported output formats.
const (
	FormatText  OutputFormat = "txt"
	FormatJSONL OutputFormat = "jsonl"
)

// DocStatus represents the terminal state of a document within a run.
type DocStatus string

// Document status values reported in run summaries.
const (
	DocSummarized DocStatus = "summarized"
	DocSkipped    DocStatus = "skipped"
	DocFailed     DocStatus = "failed"
)

// Document is a discovered page with its extracted content.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Depth   int    `json:"depth"`
}

// ManifestEntry references a staged document by content locator rather than
// by value, so batches can be loaded without holding the whole crawl in
// memory or in a workflow payload.
type ManifestEntry struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	ContentFile string `json:"content_file"`
}

// Batch is a contiguous half-open slice [Start, End) of the manifest.
type Batch struct {
	Start int
	End   int
}

// Size returns the number of documents in the batch.
func (b Batch) Size() int {
	return b.End - b.Start
}

// SummaryRecord is the durable per-document result of summarization.
type SummaryRecord struct {
	URL      string   `json:"url"`
	Content  string   `json:"content,omitempty"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords,omitempty"`
	Filename string   `json:"-"`
}

// DocOutcome captures the terminal state of one document after the worker
// pool has finished with it.
type DocOutcome struct {
	URL    string
	Status DocStatus
	Record *SummaryRecord
	Err    error
}

// RunCounts accumulates per-run statistics for the final report.
type RunCounts struct {
	Discovered int      `json:"discovered"`
	Summarized int      `json:"summarized"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	FailedURLs []string `json:"failed_urls,omitempty"`
}

// Add folds a batch of outcomes into the counts.
func (c *RunCounts) Add(outcomes []DocOutcome) {
	for _, out := range outcomes {
		switch out.Status {
		case DocSummarized:
			c.Summarized++
		case DocSkipped:
			c.Skipped++
		case DocFailed:
			c.Failed++
			c.FailedURLs = append(c.FailedURLs, out.URL)
		}
	}
}

// Merge folds another set of counts into this one.
func (c *RunCounts) Merge(other RunCounts) {
	c.Discovered += other.Discovered
	c.Summarized += other.Summarized
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.FailedURLs = append(c.FailedURLs, other.FailedURLs...)
}

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig matches the summarization retry policy: initial 2s,
// doubling, capped at 30s, three attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}
