// Package cmd implements the sitedigest command line interface.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/sitedigest/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sitedigest",
	Short: "Crawl a site, summarize every page with an LLM, and merge the results",
	Long: `sitedigest recursively discovers pages from a set of root URLs,
summarizes each page with a language model, and deterministically merges
the summaries into a single artifact (llms.txt or llms.jsonl).

Runs are resumable: completed pages are checkpointed and skipped on rerun.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (yaml)")
}

// loadConfig builds the effective configuration: defaults, then config
// file, then SITEDIGEST_* environment, then any flags bound by the caller.
func loadConfig(bind func(v *viper.Viper) error) (config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if bind != nil {
		if err := bind(v); err != nil {
			return config.Config{}, err
		}
	}
	return config.FromViper(v)
}
