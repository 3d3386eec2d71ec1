package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/aggregate"
	"github.com/JakeFAU/sitedigest/internal/crawler"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/progress"
	"github.com/JakeFAU/sitedigest/internal/worker"
)

// Local runs the pipeline in-process.
type Local struct {
	crawler    *crawler.Crawler
	pool       *worker.Pool
	aggregator *aggregate.Aggregator
	store      pipeline.BlobStore
	checkpoint pipeline.CheckpointStore
	blacklist  *pipeline.Blacklist
	logger     *zap.Logger

	emitter progress.Emitter
	clock   progress.Clock
}

// NewLocal builds the in-process backend.
func NewLocal(
	c *crawler.Crawler,
	pool *worker.Pool,
	aggregator *aggregate.Aggregator,
	store pipeline.BlobStore,
	checkpoint pipeline.CheckpointStore,
	blacklist *pipeline.Blacklist,
	logger *zap.Logger,
) *Local {
	return &Local{
		crawler:    c,
		pool:       pool,
		aggregator: aggregator,
		store:      store,
		checkpoint: checkpoint,
		blacklist:  blacklist,
		logger:     logger,
	}
}

// SetProgress attaches an event stream for run milestones. Optional; when
// unset the run emits nothing.
func (l *Local) SetProgress(emitter progress.Emitter, clk progress.Clock) {
	l.emitter = emitter
	l.clock = clk
}

// Run executes the full pipeline. Per-document failures are reported in the
// result counts; only setup failures and cancellation return an error.
func (l *Local) Run(ctx context.Context, in Input) (Result, error) {
	stream := l.newRunStream()
	stream.runStart()

	docs, structure, err := l.discover(ctx, in)
	if err != nil {
		stream.runError(err)
		return Result{}, err
	}

	entries, err := pipeline.StageDocuments(ctx, l.store, docs)
	if err != nil {
		stream.runError(err)
		return Result{}, fmt.Errorf("stage manifest: %w", err)
	}

	counts := pipeline.RunCounts{Discovered: len(entries)}
	batches := pipeline.Schedule(len(entries), in.BatchSize)
	if err := l.processBatches(ctx, entries, batches, in.ContinueThreshold, &counts, stream); err != nil {
		stream.runError(err)
		return Result{}, err
	}

	uri, err := l.aggregateRun(ctx, in, structure)
	if err != nil {
		stream.runError(err)
		return Result{}, err
	}
	stream.runDone(counts)

	l.logger.Info("run complete",
		zap.Int("discovered", counts.Discovered),
		zap.Int("summarized", counts.Summarized),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
		zap.String("artifact", uri),
	)
	return Result{Counts: counts, ArtifactURI: uri}, nil
}

// discover produces the document set: a crawl in fresh mode, a re-fetch of
// the artifact's URLs in update mode. In update mode it also returns the
// artifact's line structure for structure-preserving aggregation.
func (l *Local) discover(ctx context.Context, in Input) ([]pipeline.Document, []string, error) {
	if in.ExistingArtifact != "" {
		lines, err := aggregate.LoadArtifact(ctx, in.ExistingArtifact)
		if err != nil {
			return nil, nil, fmt.Errorf("load existing artifact: %w", err)
		}
		urls := aggregate.ParseArtifactURLs(lines)
		if len(urls) == 0 {
			return nil, nil, fmt.Errorf("existing artifact %s references no urls", in.ExistingArtifact)
		}
		docs, err := l.crawler.FromArtifact(ctx, urls, l.blacklist)
		if err != nil {
			return nil, nil, err
		}
		return docs, lines, nil
	}

	docs, err := l.crawler.Discover(ctx, in.Roots, l.blacklist)
	if err != nil {
		return nil, nil, err
	}
	return docs, nil, nil
}

// processBatches runs batches strictly in order with one checkpoint flush
// each. The continue threshold bounds how much work a single logical run
// segment accumulates: when crossed with batches remaining, the orchestrator
// starts a fresh segment that resumes from the checkpoint, invisible to the
// caller.
func (l *Local) processBatches(ctx context.Context, entries []pipeline.ManifestEntry, batches []pipeline.Batch, continueThreshold int, counts *pipeline.RunCounts, stream *runStream) error {
	processedInSegment := 0
	segment := 1
	for i, batch := range batches {
		docs, err := pipeline.LoadBatch(ctx, l.store, entries, batch)
		if err != nil {
			return fmt.Errorf("load batch %d: %w", i, err)
		}

		outcomes, err := l.pool.ProcessBatch(ctx, docs)
		if err != nil {
			return fmt.Errorf("process batch %d: %w", i, err)
		}
		counts.Add(outcomes)
		stream.documentsDone(outcomes)

		if err := l.checkpoint.Flush(); err != nil {
			return fmt.Errorf("flush checkpoint after batch %d: %w", i, err)
		}
		stream.batchDone(i, batch.Size())
		l.logger.Debug("batch complete",
			zap.Int("batch", i),
			zap.Int("size", batch.Size()),
			zap.Int("segment", segment),
		)

		processedInSegment += batch.Size()
		if continueThreshold > 0 && processedInSegment >= continueThreshold && i+1 < len(batches) {
			l.logger.Info("continue threshold reached, starting fresh run segment",
				zap.Int("processed", processedInSegment),
				zap.Int("segment", segment),
			)
			processedInSegment = 0
			segment++
		}
	}
	return nil
}

// aggregateRun merges the stored records and writes the artifact.
func (l *Local) aggregateRun(ctx context.Context, in Input, structure []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if in.PreserveStructure && structure != nil {
		data, err = l.aggregator.PreserveStructure(ctx, structure, l.blacklist)
	} else {
		data, err = l.aggregator.Fresh(ctx, in.Format, l.blacklist)
	}
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}

	uri, err := l.store.Put(ctx, in.OutputFile, data)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return uri, nil
}
