package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigest/internal/api"
	"github.com/JakeFAU/sitedigest/internal/clock/system"
	"github.com/JakeFAU/sitedigest/internal/config"
	"github.com/JakeFAU/sitedigest/internal/durable"
	"github.com/JakeFAU/sitedigest/internal/logging"
	"github.com/JakeFAU/sitedigest/internal/orchestrator"
	"github.com/JakeFAU/sitedigest/internal/pipeline"
	"github.com/JakeFAU/sitedigest/internal/progress"
	"github.com/JakeFAU/sitedigest/internal/progress/sinks"
)

var generateOpts struct {
	urls            []string
	existingFile    string
	updateStructure bool
	backend         string
	workflowID      string
	blacklistFile   string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the crawl-summarize-aggregate pipeline",
	Example: `  sitedigest generate --urls https://docs.example.com
  sitedigest generate --urls https://docs.example.com --format jsonl
  sitedigest generate --existing-file llms_txt/llms.txt --update-structure
  sitedigest generate --urls https://docs.example.com --backend temporal --workflow-id nightly-docs`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	f := generateCmd.Flags()

	f.StringSliceVar(&generateOpts.urls, "urls", nil, "root URLs to crawl")
	f.StringVar(&generateOpts.existingFile, "existing-file", "", "prior artifact (path or URL) whose URLs seed the run instead of crawling")
	f.BoolVar(&generateOpts.updateStructure, "update-structure", false, "preserve the existing artifact's line structure, replacing matched records in place")
	f.StringVar(&generateOpts.backend, "backend", "local", "execution backend: local or temporal")
	f.StringVar(&generateOpts.workflowID, "workflow-id", "", "temporal workflow id (reattaches if already running)")
	f.StringVar(&generateOpts.blacklistFile, "blacklist", "", "newline-delimited file of URLs to exclude")

	// Config overrides.
	f.Int("max-depth", 0, "crawl depth (0 = roots only)")
	f.String("format", "", "output format: txt or jsonl")
	f.String("project-dir", "", "project output directory")
	f.String("output-file", "", "artifact file name within the project directory")
	f.String("model", "", "anthropic model name")
	f.String("prompt", "", "summarization instructions")
	f.Int("batch-size", 0, "documents per orchestration batch")
	f.String("metrics-addr", "", "serve /metrics and /healthz on this address while running")
}

func bindGenerateFlags(cmd *cobra.Command) func(v *viper.Viper) error {
	return func(v *viper.Viper) error {
		for flagName, key := range map[string]string{
			"max-depth":    "crawler.max_depth",
			"format":       "project.format",
			"project-dir":  "project.dir",
			"output-file":  "project.output_file",
			"model":        "summarizer.model",
			"prompt":       "summarizer.prompt",
			"batch-size":   "pipeline.batch_size",
			"metrics-addr": "metrics.addr",
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
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if len(generateOpts.urls) == 0 && generateOpts.existingFile == "" {
		return fmt.Errorf("either --urls or --existing-file is required")
	}
	if generateOpts.updateStructure && generateOpts.existingFile == "" {
		return fmt.Errorf("--update-structure requires --existing-file")
	}

	cfg, err := loadConfig(bindGenerateFlags(cmd))
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		metricsSrv := api.NewServer(cfg.Metrics.Addr, logger)
		metricsSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	orch, cleanup, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := cleanup(cleanupCtx); err != nil {
				logger.Warn("cleanup failed", zap.Error(err))
			}
		}()
	}

	res, err := orch.Run(ctx, orchestrator.Input{
		Roots:             generateOpts.urls,
		ExistingArtifact:  generateOpts.existingFile,
		PreserveStructure: generateOpts.updateStructure,
		Format:            pipeline.OutputFormat(cfg.Project.Format),
		OutputFile:        cfg.Project.OutputFile,
		BatchSize:         cfg.Pipeline.BatchSize,
		ContinueThreshold: cfg.Pipeline.ContinueThreshold,
	})
	if err != nil {
		return err
	}

	printReport(cmd, res)
	// Per-document failures are reported above but do not fail the run.
	return nil
}

func buildOrchestrator(cfg config.Config, logger *zap.Logger) (orchestrator.Orchestrator, func(context.Context) error, error) {
	switch generateOpts.backend {
	case "local":
		comps, err := buildComponents(cfg, generateOpts.blacklistFile, retryFromConfig(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		local := orchestrator.NewLocal(
			comps.crawler,
			comps.pool,
			comps.aggregator,
			comps.store,
			comps.checkpoint,
			comps.blacklist,
			logger,
		)
		hub, err := buildProgressHub(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		local.SetProgress(hub, system.New())
		return local, hub.Close, nil
	case "temporal":
		return orchestrator.NewTemporal(durable.ClientConfig{
			Address:    cfg.Temporal.Address,
			Namespace:  cfg.Temporal.Namespace,
			TaskQueue:  cfg.Temporal.TaskQueue,
			WorkflowID: generateOpts.workflowID,
		}, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want local or temporal)", generateOpts.backend)
	}
}

// buildProgressHub fans run milestones out to Prometheus and, in development
// mode, to the structured log.
func buildProgressHub(cfg config.Config, logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("register progress metrics: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if cfg.Logging.Development {
		sinkList = append(sinkList, sinks.NewLogSink(logger.Named("progress")))
	}
	return progress.NewHub(progress.Config{Logger: logger.Named("progress_hub")}, sinkList...), nil
}

func printReport(cmd *cobra.Command, res orchestrator.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun summary\n")
	fmt.Fprintf(out, "  discovered: %d\n", res.Counts.Discovered)
	fmt.Fprintf(out, "  summarized: %d\n", res.Counts.Summarized)
	fmt.Fprintf(out, "  skipped:    %d\n", res.Counts.Skipped)
	fmt.Fprintf(out, "  failed:     %d\n", res.Counts.Failed)
	for _, u := range res.Counts.FailedURLs {
		fmt.Fprintf(out, "    failed url: %s\n", u)
	}
	fmt.Fprintf(out, "  artifact:   %s\n", res.ArtifactURI)
}
