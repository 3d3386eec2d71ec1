package durable

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

// PipelineInput parameterizes a run. Continued runs (safety valve) carry
// StartBatch, TotalDocs, and CountsSoFar forward; fresh runs leave them
// zero.
type PipelineInput struct {
	Roots             []string
	ExistingArtifact  string
	PreserveStructure bool
	FileStructure     []string
	Format            pipeline.OutputFormat
	OutputFile        string
	BatchSize         int
	ContinueThreshold int

	StartBatch  int
	TotalDocs   int
	CountsSoFar pipeline.RunCounts
}

// PipelineResult is the workflow's observable outcome.
type PipelineResult struct {
	Counts      pipeline.RunCounts
	ArtifactURI string
}

// BatchInput names one manifest slice for a child workflow.
type BatchInput struct {
	Start  int
	End    int
	Format pipeline.OutputFormat
}

// BatchOutput reports the batch's document outcomes.
type BatchOutput struct {
	Counts pipeline.RunCounts
}

// PipelineWorkflow orchestrates one run: discover once, then one child
// workflow per batch (keeping the parent history small), then aggregate.
// When the continue threshold is crossed with batches remaining, the
// workflow continues as new from the next batch, resuming from the same
// manifest and checkpoint.
func PipelineWorkflow(ctx workflow.Context, in PipelineInput) (PipelineResult, error) {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	if in.BatchSize <= 0 {
		in.BatchSize = 10
	}

	if in.TotalDocs == 0 {
		discoverCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 30 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    5 * time.Second,
				MaximumInterval:    2 * time.Minute,
				MaximumAttempts:    3,
				BackoffCoefficient: 2.0,
			},
		})
		var discovered DiscoverOutput
		err := workflow.ExecuteActivity(discoverCtx, a.Discover, DiscoverInput{
			Roots:            in.Roots,
			ExistingArtifact: in.ExistingArtifact,
		}).Get(ctx, &discovered)
		if err != nil {
			return PipelineResult{}, fmt.Errorf("discover: %w", err)
		}
		in.TotalDocs = discovered.TotalDocs
		in.CountsSoFar.Discovered = discovered.TotalDocs
		logger.Info("discovery complete", "documents", discovered.TotalDocs)
	}

	batches := pipeline.Schedule(in.TotalDocs, in.BatchSize)
	counts := in.CountsSoFar
	processedInRun := 0

	for i := in.StartBatch; i < len(batches); i++ {
		batch := batches[i]
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-batch-%d-%d",
				workflow.GetInfo(ctx).WorkflowExecution.ID, batch.Start, batch.End),
		})

		var out BatchOutput
		err := workflow.ExecuteChildWorkflow(childCtx, BatchWorkflow, BatchInput{
			Start:  batch.Start,
			End:    batch.End,
			Format: in.Format,
		}).Get(ctx, &out)
		if err != nil {
			return PipelineResult{}, fmt.Errorf("batch [%d,%d): %w", batch.Start, batch.End, err)
		}
		counts.Merge(out.Counts)
		processedInRun += batch.Size()
		logger.Info("batch complete", "start", batch.Start, "end", batch.End)

		if in.ContinueThreshold > 0 && processedInRun >= in.ContinueThreshold && i+1 < len(batches) {
			logger.Info("continue threshold reached, continuing as new", "processed", processedInRun)
			next := in
			next.StartBatch = i + 1
			next.CountsSoFar = counts
			return PipelineResult{}, workflow.NewContinueAsNewError(ctx, PipelineWorkflow, next)
		}
	}

	outputCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
	})
	var uri string
	err := workflow.ExecuteActivity(outputCtx, a.GenerateOutput, GenerateOutputInput{
		Format:            in.Format,
		OutputFile:        in.OutputFile,
		PreserveStructure: in.PreserveStructure,
		FileStructure:     in.FileStructure,
	}).Get(ctx, &uri)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("generate output: %w", err)
	}

	logger.Info("pipeline complete", "artifact", uri)
	return PipelineResult{Counts: counts, ArtifactURI: uri}, nil
}

// BatchWorkflow processes one batch in its own event history: load the
// slice, summarize every document concurrently, then flush the checkpoint
// once.
func BatchWorkflow(ctx workflow.Context, in BatchInput) (BatchOutput, error) {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	loadCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	})
	var loaded LoadBatchOutput
	if err := workflow.ExecuteActivity(loadCtx, a.LoadBatch, LoadBatchInput{
		Start: in.Start,
		End:   in.End,
	}).Get(ctx, &loaded); err != nil {
		return BatchOutput{}, fmt.Errorf("load batch: %w", err)
	}

	summarizeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			BackoffCoefficient: 2.0,
		},
	})

	futures := make([]workflow.Future, len(loaded.Entries))
	for i, entry := range loaded.Entries {
		futures[i] = workflow.ExecuteActivity(summarizeCtx, a.SummarizeDocument, SummarizeDocumentInput{Entry: entry})
	}

	var out BatchOutput
	for i, future := range futures {
		var doc SummarizeDocumentOutput
		if err := future.Get(ctx, &doc); err != nil {
			// The activity itself failed past its retry ceiling; record the
			// document as failed rather than failing the batch.
			logger.Warn("summarize activity failed", "url", loaded.Entries[i].URL, "error", err)
			doc = SummarizeDocumentOutput{
				URL:    loaded.Entries[i].URL,
				Status: pipeline.DocFailed,
				Error:  err.Error(),
			}
		}
		switch doc.Status {
		case pipeline.DocSummarized:
			out.Counts.Summarized++
		case pipeline.DocSkipped:
			out.Counts.Skipped++
		case pipeline.DocFailed:
			out.Counts.Failed++
			out.Counts.FailedURLs = append(out.Counts.FailedURLs, doc.URL)
		}
	}

	checkpointCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	})
	if err := workflow.ExecuteActivity(checkpointCtx, a.SaveCheckpoint).Get(ctx, nil); err != nil {
		return BatchOutput{}, fmt.Errorf("save checkpoint: %w", err)
	}
	return out, nil
}
