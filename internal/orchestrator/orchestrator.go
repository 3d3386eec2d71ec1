// Package orchestrator sequences a run: discover, batch, summarize,
// checkpoint, aggregate. Two interchangeable backends exist with the same
// observable contract: an in-process scheduler and a Temporal-backed driver.
package orchestrator

import (
	"context"

	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

// Input describes one run.
type Input struct {
	// Roots are the crawl seed URLs. Ignored when ExistingArtifact is set.
	Roots []string
	// ExistingArtifact is a path or http(s) URL of a prior artifact whose
	// URLs seed discovery directly (update mode).
	ExistingArtifact string
	// PreserveStructure replaces lines of the existing artifact in place
	// instead of producing a fresh sorted artifact.
	PreserveStructure bool
	// Format selects text or JSONL output.
	Format pipeline.OutputFormat
	// OutputFile is the artifact path within the blob store.
	OutputFile string
	// BatchSize bounds documents per orchestration step.
	BatchSize int
	// ContinueThreshold bounds documents processed per logical run segment
	// before the orchestrator restarts itself from the checkpoint.
	ContinueThreshold int
}

// Result is the run's observable outcome.
type Result struct {
	Counts pipeline.RunCounts
	// ArtifactURI locates the merged artifact.
	ArtifactURI string
}

// Orchestrator runs a full pipeline invocation.
type Orchestrator interface {
	Run(ctx context.Context, in Input) (Result, error)
}
