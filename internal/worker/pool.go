// Package worker runs summarization over document batches with bounded
// concurrency, retries, and checkpoint-based idempotency.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/sitedigest/internal/metrics"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/summarizer"
)

// PoolConfig controls batch processing.
type PoolConfig struct {
	// MaxConcurrent bounds in-flight model calls.
	MaxConcurrent int
	// Format selects plain-text or structured records.
	Format pipeline.OutputFormat
	// Prompt holds the user's summarization instructions.
	Prompt string
	// SummariesPrefix is the blob store prefix for per-document records.
	SummariesPrefix string
	// Retry governs transient model failures.
	Retry pipeline.RetryConfig
}

// Pool summarizes documents. Checkpoint writes are in-memory only; the
// orchestrator flushes once per batch.
type Pool struct {
	cfg        PoolConfig
	summarizer pipeline.Summarizer
	store      pipeline.BlobStore
	checkpoint pipeline.CheckpointStore
	blacklist  *pipeline.Blacklist
	logger     *zap.Logger
}

// NewPool builds a Pool.
func NewPool(
	cfg PoolConfig,
	s pipeline.Summarizer,
	store pipeline.BlobStore,
	checkpoint pipeline.CheckpointStore,
	blacklist *pipeline.Blacklist,
	logger *zap.Logger,
) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.Format == "" {
		cfg.Format = pipeline.FormatText
	}
	return &Pool{
		cfg:        cfg,
		summarizer: s,
		store:      store,
		checkpoint: checkpoint,
		blacklist:  blacklist,
		logger:     logger,
	}
}

// ProcessBatch summarizes every document in the batch under the concurrency
// bound. Per-document failures are recorded in the outcome, never returned;
// the only error is context cancellation. Outcomes keep document order.
func (p *Pool) ProcessBatch(ctx context.Context, docs []pipeline.Document) ([]pipeline.DocOutcome, error) {
	sem := semaphore.NewWeighted(int64(p.cfg.MaxConcurrent))
	outcomes := make([]pipeline.DocOutcome, len(docs))

	for i, doc := range docs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire summary slot: %w", err)
		}
		go func() {
			defer sem.Release(1)
			outcomes[i] = p.ProcessDocument(ctx, doc)
		}()
	}
	// Draining the semaphore waits for all workers.
	if err := sem.Acquire(ctx, int64(p.cfg.MaxConcurrent)); err != nil {
		return nil, fmt.Errorf("drain summary slots: %w", err)
	}
	sem.Release(int64(p.cfg.MaxConcurrent))
	return outcomes, nil
}

// ProcessDocument takes a single document to its terminal state: skipped
// (blacklisted or already checkpointed), summarized with its record stored,
// or failed after retries.
func (p *Pool) ProcessDocument(ctx context.Context, doc pipeline.Document) pipeline.DocOutcome {
	key := pipeline.NormalizeKey(doc.URL)

	if p.blacklist.Contains(key) {
		p.logger.Info("skipping blacklisted url", zap.String("url", doc.URL))
		metrics.ObserveDocument("blacklisted")
		return pipeline.DocOutcome{URL: doc.URL, Status: pipeline.DocSkipped}
	}

	if filename, ok := p.checkpoint.Get(key); ok {
		if record, err := p.loadRecord(ctx, doc.URL, filename); err == nil {
			p.logger.Info("already summarized", zap.String("url", doc.URL), zap.String("file", filename))
			metrics.ObserveDocument("checkpoint_hit")
			return pipeline.DocOutcome{URL: doc.URL, Status: pipeline.DocSummarized, Record: record}
		}
		// Stale entry: the record is gone, so the document is reprocessed.
		p.logger.Warn("checkpointed record missing, reprocessing",
			zap.String("url", doc.URL),
			zap.String("file", filename),
		)
	}

	record, err := p.summarize(ctx, doc)
	if err != nil {
		p.logger.Error("summarization failed", zap.String("url", doc.URL), zap.Error(err))
		metrics.ObserveDocument("failed")
		return pipeline.DocOutcome{URL: doc.URL, Status: pipeline.DocFailed, Err: err}
	}

	data, err := encodeRecord(p.cfg.Format, doc, record)
	if err != nil {
		metrics.ObserveDocument("failed")
		return pipeline.DocOutcome{URL: doc.URL, Status: pipeline.DocFailed, Err: err}
	}
	if _, err := p.store.Put(ctx, path.Join(p.cfg.SummariesPrefix, record.Filename), data); err != nil {
		metrics.ObserveDocument("failed")
		return pipeline.DocOutcome{
			URL:    doc.URL,
			Status: pipeline.DocFailed,
			Err:    fmt.Errorf("store summary: %w", err),
		}
	}

	p.checkpoint.Put(key, record.Filename)
	metrics.ObserveDocument("summarized")
	return pipeline.DocOutcome{URL: doc.URL, Status: pipeline.DocSummarized, Record: record}
}

// loadRecord rebuilds a SummaryRecord from its stored form, used for the
// idempotent checkpoint short-circuit.
func (p *Pool) loadRecord(ctx context.Context, url, filename string) (*pipeline.SummaryRecord, error) {
	data, err := p.store.Get(ctx, path.Join(p.cfg.SummariesPrefix, filename))
	if err != nil {
		return nil, err
	}
	record := &pipeline.SummaryRecord{URL: url, Filename: filename}
	if p.cfg.Format == pipeline.FormatJSONL {
		if err := json.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decode stored record %s: %w", filename, err)
		}
		record.Filename = filename
		return record, nil
	}
	record.Summary = string(data)
	return record, nil
}

// summarize runs the model call under the retry policy and shapes the result
// for the configured format.
func (p *Pool) summarize(ctx context.Context, doc pipeline.Document) (*pipeline.SummaryRecord, error) {
	prompt := p.cfg.Prompt
	if p.cfg.Format == pipeline.FormatJSONL {
		prompt = summarizer.BuildStructuredPrompt(p.cfg.Prompt)
	}

	var raw string
	err := pipeline.RetryDo(ctx, p.cfg.Retry, func(attempt int) error {
		if attempt > 1 {
			metrics.IncSummaryRetry()
			p.logger.Warn("retrying summarization",
				zap.String("url", doc.URL),
				zap.Int("attempt", attempt),
			)
		}
		var callErr error
		raw, callErr = p.summarizer.Summarize(ctx, prompt, doc.Content)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	record := &pipeline.SummaryRecord{
		URL:      doc.URL,
		Filename: pipeline.SummaryFilename(doc.URL),
	}
	if p.cfg.Format == pipeline.FormatJSONL {
		parsed := summarizer.ParseStructuredSummary(raw)
		record.Summary = parsed.Summary
		record.Keywords = parsed.Keywords
		record.Content = doc.Content
		return record, nil
	}
	record.Summary = fmt.Sprintf("[%s](%s): %s\n\n", doc.Title, doc.URL, summarizer.CollapseNewlines(raw))
	return record, nil
}

// encodeRecord serializes a record for storage: the formatted line for text
// runs, the JSON entry for structured runs.
func encodeRecord(format pipeline.OutputFormat, doc pipeline.Document, record *pipeline.SummaryRecord) ([]byte, error) {
	if format == pipeline.FormatJSONL {
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode record for %s: %w", doc.URL, err)
		}
		return data, nil
	}
	return []byte(record.Summary), nil
}
