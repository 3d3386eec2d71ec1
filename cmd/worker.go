package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sitedigest/internal/durable"
	"github.com/JakeFAU/sitedigest/internal/logging"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
)

var workerOpts struct {
	blacklistFile string
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker serving the pipeline task queue",
	Long: `worker serves the sitedigest task queue: it executes the discovery,
summarization, checkpoint, and aggregation activities for runs started with
"generate --backend temporal". The worker host owns the project directory;
all workers on a task queue must share it.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	f := workerCmd.Flags()
	f.StringVar(&workerOpts.blacklistFile, "blacklist", "", "newline-delimited file of URLs to exclude")
	f.String("task-queue", "", "temporal task queue to serve")
	f.String("temporal-address", "", "temporal frontend address")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	bind := func(v *viper.Viper) error {
		for flagName, key := range map[string]string{
			"task-queue":       "temporal.task_queue",
			"temporal-address": "temporal.address",
		} {
			flag := cmd.Flags().Lookup(flagName)
			if flag != nil && flag.Changed {
				if err := v.BindPFlag(key, flag); err != nil {
					return fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
		return nil
	}

	cfg, err := loadConfig(bind)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Temporal retries the summarize activity itself, so the in-process
	// retry loop is disabled to avoid compounding backoff.
	retry := pipeline.RetryConfig{MaxAttempts: 1}
	comps, err := buildComponents(cfg, workerOpts.blacklistFile, retry, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return durable.RunWorker(ctx, durable.WorkerConfig{
		Address:                cfg.Temporal.Address,
		Namespace:              cfg.Temporal.Namespace,
		TaskQueue:              cfg.Temporal.TaskQueue,
		MaxConcurrentSummaries: cfg.Summarizer.MaxConcurrent,
	}, &durable.Activities{
		Crawler:    comps.crawler,
		Pool:       comps.pool,
		Aggregator: comps.aggregator,
		Store:      comps.store,
		Checkpoint: comps.checkpoint,
		Blacklist:  comps.blacklist,
		Logger:     logger,
	}, logger)
}
