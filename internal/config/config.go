// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all tool configuration knobs loaded via Viper.
type Config struct {
	Project    ProjectConfig    `mapstructure:"project"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ProjectConfig sets output locations and artifact format.
type ProjectConfig struct {
	Dir          string `mapstructure:"dir"`
	SummariesDir string `mapstructure:"summaries_dir"`
	OutputFile   string `mapstructure:"output_file"`
	Format       string `mapstructure:"format"`
}

// CrawlerConfig governs discovery behavior.
type CrawlerConfig struct {
	MaxDepth            int     `mapstructure:"max_depth"`
	MaxConcurrentCrawls int     `mapstructure:"max_concurrent_crawls"`
	UserAgent           string  `mapstructure:"user_agent"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	PerDomainRPS        float64 `mapstructure:"per_domain_rps"`
}

// ExtractorConfig selects the HTML-to-text strategy.
type ExtractorConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// SummarizerConfig configures the language-model client.
type SummarizerConfig struct {
	Model         string `mapstructure:"model"`
	APIKey        string `mapstructure:"api_key"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	Prompt        string `mapstructure:"prompt"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// PipelineConfig bounds orchestration state.
type PipelineConfig struct {
	BatchSize         int `mapstructure:"batch_size"`
	ContinueThreshold int `mapstructure:"continue_threshold"`
}

// RetryConfig controls summarization retry behavior.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// TemporalConfig holds connection details for the durable-workflow backend.
type TemporalConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// MetricsConfig enables the optional metrics/health listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DefaultSummaryPrompt is used when no prompt is configured.
const DefaultSummaryPrompt = "You are creating a summary for a webpage to be used in a llms.txt file " +
	"to help LLMs in the future know what is on this page. Produce a concise " +
	"summary of the key items on this page and when an LLM should access it."

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an already-populated Viper.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers default values on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.dir", "llms_txt")
	v.SetDefault("project.summaries_dir", "summaries")
	v.SetDefault("project.output_file", "llms.txt")
	v.SetDefault("project.format", "txt")
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.max_concurrent_crawls", 3)
	v.SetDefault("crawler.user_agent", "sitedigest/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.per_domain_rps", 4)
	v.SetDefault("extractor.strategy", "markdown")
	v.SetDefault("summarizer.model", "claude-3-7-sonnet-latest")
	v.SetDefault("summarizer.max_tokens", 1024)
	v.SetDefault("summarizer.prompt", DefaultSummaryPrompt)
	v.SetDefault("summarizer.max_concurrent", 5)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.continue_threshold", 500)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 2000)
	v.SetDefault("retry.backoff_max_ms", 30000)
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "sitedigest-pipeline")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Project.Dir == "" {
		return fmt.Errorf("project.dir must be set")
	}
	if c.Project.Format != "txt" && c.Project.Format != "jsonl" {
		return fmt.Errorf("project.format must be txt or jsonl, got %q", c.Project.Format)
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.MaxConcurrentCrawls <= 0 {
		return fmt.Errorf("crawler.max_concurrent_crawls must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Summarizer.MaxConcurrent <= 0 {
		return fmt.Errorf("summarizer.max_concurrent must be > 0")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	if c.Pipeline.ContinueThreshold <= 0 {
		return fmt.Errorf("pipeline.continue_threshold must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	return nil
}

// FetchTimeout converts the crawler timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the retry initial backoff config into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Retry.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the retry max backoff config into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Retry.BackoffMaxMs) * time.Millisecond
}
