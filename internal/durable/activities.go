// Package durable drives the pipeline on Temporal: a parent workflow per
// run, a child workflow per batch, and activities that do the actual work.
//
// All activities of a run must land on workers sharing the same blob store
// and checkpoint, since documents and records travel by locator, not by
// payload. With the local filesystem store that means one worker host per
// task queue.
package durable

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/aggregate"
	"github.com/JakeFAU/sitedigest/internal/crawler"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/worker"
)

// Activities bundles the pipeline components invoked from workflows.
type Activities struct {
	Crawler    *crawler.Crawler
	Pool       *worker.Pool
	Aggregator *aggregate.Aggregator
	Store      pipeline.BlobStore
	Checkpoint pipeline.CheckpointStore
	Blacklist  *pipeline.Blacklist
	Logger     *zap.Logger
}

// DiscoverInput seeds discovery.
type DiscoverInput struct {
	Roots            []string
	ExistingArtifact string
}

// DiscoverOutput reports the persisted manifest size. Content stays in the
// blob store to keep workflow payloads bounded.
type DiscoverOutput struct {
	TotalDocs int
}

// Discover crawls (or re-fetches the prior artifact's URLs) and stages the
// manifest.
func (a *Activities) Discover(ctx context.Context, in DiscoverInput) (DiscoverOutput, error) {
	var (
		docs []pipeline.Document
		err  error
	)
	if in.ExistingArtifact != "" {
		lines, loadErr := aggregate.LoadArtifact(ctx, in.ExistingArtifact)
		if loadErr != nil {
			return DiscoverOutput{}, fmt.Errorf("load existing artifact: %w", loadErr)
		}
		urls := aggregate.ParseArtifactURLs(lines)
		if len(urls) == 0 {
			return DiscoverOutput{}, fmt.Errorf("existing artifact %s references no urls", in.ExistingArtifact)
		}
		docs, err = a.Crawler.FromArtifact(ctx, urls, a.Blacklist)
	} else {
		docs, err = a.Crawler.Discover(ctx, in.Roots, a.Blacklist)
	}
	if err != nil {
		return DiscoverOutput{}, err
	}

	entries, err := pipeline.StageDocuments(ctx, a.Store, docs)
	if err != nil {
		return DiscoverOutput{}, fmt.Errorf("stage manifest: %w", err)
	}
	a.Logger.Info("manifest staged", zap.Int("documents", len(entries)))
	return DiscoverOutput{TotalDocs: len(entries)}, nil
}

// LoadBatchInput selects a manifest slice.
type LoadBatchInput struct {
	Start int
	End   int
}

// LoadBatchOutput carries batch metadata only; content travels by locator.
type LoadBatchOutput struct {
	Entries []pipeline.ManifestEntry
}

// LoadBatch reads one batch's manifest entries.
func (a *Activities) LoadBatch(ctx context.Context, in LoadBatchInput) (LoadBatchOutput, error) {
	entries, err := pipeline.LoadManifest(ctx, a.Store)
	if err != nil {
		return LoadBatchOutput{}, err
	}
	if in.Start < 0 || in.End > len(entries) || in.Start > in.End {
		return LoadBatchOutput{}, fmt.Errorf("batch [%d,%d) out of range for manifest of %d entries", in.Start, in.End, len(entries))
	}
	return LoadBatchOutput{Entries: entries[in.Start:in.End]}, nil
}

// SummarizeDocumentInput names one staged document.
type SummarizeDocumentInput struct {
	Entry pipeline.ManifestEntry
}

// SummarizeDocumentOutput is the document's terminal state. Failures are
// reported here, not as activity errors, so one bad document never fails a
// batch.
type SummarizeDocumentOutput struct {
	URL    string
	Status pipeline.DocStatus
	Error  string
}

// SummarizeDocument loads the staged content and takes the document through
// the worker pool's per-document path.
func (a *Activities) SummarizeDocument(ctx context.Context, in SummarizeDocumentInput) (SummarizeDocumentOutput, error) {
	content, err := a.Store.Get(ctx, path.Join(pipeline.StagingDir, in.Entry.ContentFile))
	if err != nil {
		return SummarizeDocumentOutput{}, fmt.Errorf("load staged content for %s: %w", in.Entry.URL, err)
	}

	outcome := a.Pool.ProcessDocument(ctx, pipeline.Document{
		URL:     in.Entry.URL,
		Title:   in.Entry.Title,
		Content: string(content),
	})
	out := SummarizeDocumentOutput{URL: outcome.URL, Status: outcome.Status}
	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
	}
	return out, nil
}

// SaveCheckpoint flushes the checkpoint, the batch-level durability point.
func (a *Activities) SaveCheckpoint(ctx context.Context) error {
	if err := a.Checkpoint.Flush(); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	return nil
}

// GenerateOutputInput selects the aggregation mode.
type GenerateOutputInput struct {
	Format            pipeline.OutputFormat
	OutputFile        string
	PreserveStructure bool
	FileStructure     []string
}

// GenerateOutput merges stored records into the final artifact and returns
// its URI.
func (a *Activities) GenerateOutput(ctx context.Context, in GenerateOutputInput) (string, error) {
	var (
		data []byte
		err  error
	)
	if in.PreserveStructure && in.FileStructure != nil {
		data, err = a.Aggregator.PreserveStructure(ctx, in.FileStructure, a.Blacklist)
	} else {
		data, err = a.Aggregator.Fresh(ctx, in.Format, a.Blacklist)
	}
	if err != nil {
		return "", fmt.Errorf("aggregate: %w", err)
	}

	uri, err := a.Store.Put(ctx, in.OutputFile, data)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return uri, nil
}
