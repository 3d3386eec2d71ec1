package cmd

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/aggregate"
	"github.com/JakeFAU/sitedigest/internal/checkpoint"
	"github.com/JakeFAU/sitedigest/internal/config"
	"github.com/JakeFAU/sitedigest/internal/crawler"
	"github.com/JakeFAU/sitedigest/internal/extract"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/storage/local"
	"github.com/JakeFAU/sitedigest/internal/summarizer"
	"github.com/JakeFAU/sitedigest/internal/worker"
)

// components holds the wired pipeline, shared by the local backend and the
// Temporal worker.
type components struct {
	store      *local.BlobStore
	checkpoint *checkpoint.Store
	crawler    *crawler.Crawler
	pool       *worker.Pool
	aggregator *aggregate.Aggregator
	blacklist  *pipeline.Blacklist
}

// buildComponents wires the pipeline from configuration. Failures here are
// setup errors and abort the run before any work happens.
func buildComponents(cfg config.Config, blacklistFile string, retry pipeline.RetryConfig, logger *zap.Logger) (*components, error) {
	store, err := local.New(local.Config{BaseDir: cfg.Project.Dir})
	if err != nil {
		return nil, fmt.Errorf("open project dir: %w", err)
	}

	cp, err := checkpoint.Open(filepath.Join(cfg.Project.Dir, cfg.Project.SummariesDir), logger)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}

	var blacklist *pipeline.Blacklist
	if blacklistFile != "" {
		blacklist, err = pipeline.LoadBlacklist(blacklistFile)
		if err != nil {
			return nil, fmt.Errorf("load blacklist: %w", err)
		}
		logger.Info("blacklist loaded", zap.Int("urls", blacklist.Len()))
	}

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	limiter := crawler.NewLimiter(crawler.LimiterConfig{
		DefaultRPS:   cfg.Crawler.PerDomainRPS,
		DefaultBurst: 1,
	})
	extractor := extract.New(extract.Strategy(cfg.Extractor.Strategy), logger)
	c := crawler.New(crawler.Config{
		MaxDepth:      cfg.Crawler.MaxDepth,
		MaxConcurrent: cfg.Crawler.MaxConcurrentCrawls,
	}, fetcher, extractor, limiter, logger)

	summ := summarizer.NewAnthropic(summarizer.AnthropicConfig{
		APIKey:    cfg.Summarizer.APIKey,
		Model:     cfg.Summarizer.Model,
		MaxTokens: int64(cfg.Summarizer.MaxTokens),
	}, logger)

	pool := worker.NewPool(worker.PoolConfig{
		MaxConcurrent:   cfg.Summarizer.MaxConcurrent,
		Format:          pipeline.OutputFormat(cfg.Project.Format),
		Prompt:          cfg.Summarizer.Prompt,
		SummariesPrefix: cfg.Project.SummariesDir,
		Retry:           retry,
	}, summ, store, cp, blacklist, logger)

	agg := aggregate.New(store, cfg.Project.SummariesDir, logger)

	return &components{
		store:      store,
		checkpoint: cp,
		crawler:    c,
		pool:       pool,
		aggregator: agg,
		blacklist:  blacklist,
	}, nil
}

// retryFromConfig translates config durations into the pool retry policy.
func retryFromConfig(cfg config.Config) pipeline.RetryConfig {
	return pipeline.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.BackoffInitial(),
		MaxDelay:     cfg.BackoffMax(),
		Multiplier:   2.0,
	}
}
