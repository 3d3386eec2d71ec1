package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/aggregate"
	"github.com/JakeFAU/sitedigest/internal/durable"
)

// Temporal drives a run through the durable-workflow backend. The worker
// process (sitedigest worker) does the actual work; this side only starts
// the workflow and waits.
type Temporal struct {
	cfg    durable.ClientConfig
	logger *zap.Logger
}

// NewTemporal builds the durable backend driver.
func NewTemporal(cfg durable.ClientConfig, logger *zap.Logger) *Temporal {
	return &Temporal{cfg: cfg, logger: logger}
}

// Run satisfies Orchestrator with the same observable contract as Local.
func (t *Temporal) Run(ctx context.Context, in Input) (Result, error) {
	wfInput := durable.PipelineInput{
		Roots:             in.Roots,
		ExistingArtifact:  in.ExistingArtifact,
		PreserveStructure: in.PreserveStructure,
		Format:            in.Format,
		OutputFile:        in.OutputFile,
		BatchSize:         in.BatchSize,
		ContinueThreshold: in.ContinueThreshold,
	}
	// The artifact's line structure is loaded on the driver side so the
	// workflow input is self-contained and deterministic.
	if in.PreserveStructure && in.ExistingArtifact != "" {
		lines, err := aggregate.LoadArtifact(ctx, in.ExistingArtifact)
		if err != nil {
			return Result{}, fmt.Errorf("load existing artifact: %w", err)
		}
		wfInput.FileStructure = lines
	}

	res, err := durable.Execute(ctx, t.cfg, wfInput, t.logger)
	if err != nil {
		return Result{}, err
	}
	return Result{Counts: res.Counts, ArtifactURI: res.ArtifactURI}, nil
}
