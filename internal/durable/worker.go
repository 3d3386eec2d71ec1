package durable

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// WorkerConfig connects a worker process to the Temporal cluster.
type WorkerConfig struct {
	Address   string
	Namespace string
	TaskQueue string
	// MaxConcurrentSummaries bounds concurrent activity executions on this
	// worker, which is what bounds in-flight model calls on the durable
	// backend.
	MaxConcurrentSummaries int
}

// RunWorker registers the workflows and activities and serves the task
// queue until the context is canceled.
func RunWorker(ctx context.Context, cfg WorkerConfig, activities *Activities, logger *zap.Logger) error {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	opts := worker.Options{}
	if cfg.MaxConcurrentSummaries > 0 {
		opts.MaxConcurrentActivityExecutionSize = cfg.MaxConcurrentSummaries
	}
	w := worker.New(c, cfg.TaskQueue, opts)
	w.RegisterWorkflow(PipelineWorkflow)
	w.RegisterWorkflow(BatchWorkflow)
	w.RegisterActivity(activities)

	logger.Info("worker started",
		zap.String("address", cfg.Address),
		zap.String("namespace", cfg.Namespace),
		zap.String("task_queue", cfg.TaskQueue),
	)

	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	if err := w.Run(interrupt); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
