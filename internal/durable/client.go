package durable

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/id/uuid"
)

// ClientConfig connects a run driver to the Temporal cluster.
type ClientConfig struct {
	Address   string
	Namespace string
	TaskQueue string
	// WorkflowID pins the run's identity. Starting with an ID that is
	// already running attaches to the existing run instead of failing, so
	// an interrupted caller can reconnect. Empty generates a fresh ID.
	WorkflowID string
}

// Execute starts (or reattaches to) the pipeline workflow and blocks until
// it completes, following continue-as-new transparently.
func Execute(ctx context.Context, cfg ClientConfig, in PipelineInput, logger *zap.Logger) (PipelineResult, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return PipelineResult{}, fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	workflowID := cfg.WorkflowID
	if workflowID == "" {
		id, err := uuid.New().NewID()
		if err != nil {
			return PipelineResult{}, fmt.Errorf("generate workflow id: %w", err)
		}
		workflowID = "sitedigest-" + id
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.TaskQueue,
	}, PipelineWorkflow, in)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("start workflow: %w", err)
	}
	logger.Info("workflow running",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)

	var result PipelineResult
	if err := run.Get(ctx, &result); err != nil {
		return PipelineResult{}, fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	return result, nil
}
