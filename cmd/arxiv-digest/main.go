// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the arxiv-digest CLI.
// Implements: prd001-fetch, prd002-cache, prd003-store, prd004-analysis,
//             prd005-summary (CLI surface).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/digestkit/arxiv-digest/internal/secrets"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, or the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the arxiv-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "arxiv-digest",
	Short: "Fetch, store, and analyze daily arXiv paper listings",
	Long: `arxiv-digest builds a daily digest of arXiv preprints. It fetches one
day of metadata per category from the arXiv Atom API, persists the records
in a local SQLite store behind a read-through cache, and analyzes abstracts
in batches through the OpenRouter completion API.

Each pipeline stage is a subcommand: fetch, analyze, search, and store.
A fetch prints a per-category summary; an analyze run writes a YAML report
next to the database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		lvl := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			lvl = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: lvl,
		})))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./arxiv-digest.yaml or ~/.config/arxiv-digest/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "directory for the paper database")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("arxiv-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "arxiv-digest"))
		}
	}

	viper.SetEnvPrefix("ARXIV_DIGEST")
	viper.AutomaticEnv()

	viper.SetDefault("fetch.timeout", 30*time.Second)
	viper.SetDefault("fetch.user_agent", "arxiv-digest/0.1")
	viper.SetDefault("fetch.categories", []string{"cs.AI", "cs.LG"})
	viper.SetDefault("fetch.requests_per_second", 0.33)
	viper.SetDefault("fetch.page_size", 100)
	viper.SetDefault("fetch.max_per_category", 50)
	viper.SetDefault("fetch.max_retries", 3)
	viper.SetDefault("fetch.concurrency", 2)

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("cache.capacity", 256)
	viper.SetDefault("cache.addr", "localhost:6379")

	viper.SetDefault("analyze.timeout", 2*time.Minute)
	viper.SetDefault("analyze.model", "deepseek/deepseek-chat")
	viper.SetDefault("analyze.referer", "https://github.com/digestkit/arxiv-digest")
	viper.SetDefault("analyze.app_name", "arXiv Digest")
	viper.SetDefault("analyze.max_retries", 3)
	viper.SetDefault("analyze.batch_size", 5)
	viper.SetDefault("analyze.batch_delay", 2*time.Second)
	viper.SetDefault("analyze.continue_on_error", true)
	viper.SetDefault("analyze.temperature", 0.7)
	viper.SetDefault("analyze.max_tokens", 4000)
	viper.SetDefault("analyze.output_dir", "output")

	viper.SetDefault("summary.latest_per_category", 5)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the stage configuration from viper. Defaults
// are registered in initConfig; a config file or ARXIV_DIGEST_* env vars
// override them.
func pipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("fetch.timeout"),
				UserAgent: viper.GetString("fetch.user_agent"),
			},
			Categories:        viper.GetStringSlice("fetch.categories"),
			RequestsPerSecond: viper.GetFloat64("fetch.requests_per_second"),
			PageSize:          viper.GetInt("fetch.page_size"),
			MaxPerCategory:    viper.GetInt("fetch.max_per_category"),
			MaxRetries:        viper.GetInt("fetch.max_retries"),
			Concurrency:       viper.GetInt("fetch.concurrency"),
		},
		Cache: types.CacheConfig{
			Backend:  types.CacheBackend(viper.GetString("cache.backend")),
			TTL:      viper.GetDuration("cache.ttl"),
			Capacity: viper.GetInt("cache.capacity"),
			Addr:     viper.GetString("cache.addr"),
			Password: viper.GetString("cache.password"),
			DB:       viper.GetInt("cache.db"),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
		Analyze: types.AnalyzeConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("analyze.timeout"),
				UserAgent: viper.GetString("fetch.user_agent"),
			},
			Model:           viper.GetString("analyze.model"),
			APIKey:          viper.GetString("analyze.api_key"),
			Referer:         viper.GetString("analyze.referer"),
			AppName:         viper.GetString("analyze.app_name"),
			MaxRetries:      viper.GetInt("analyze.max_retries"),
			BatchSize:       viper.GetInt("analyze.batch_size"),
			BatchDelay:      viper.GetDuration("analyze.batch_delay"),
			ContinueOnError: viper.GetBool("analyze.continue_on_error"),
			Temperature:     viper.GetFloat64("analyze.temperature"),
			MaxTokens:       viper.GetInt("analyze.max_tokens"),
			OutputDir:       viper.GetString("analyze.output_dir"),
		},
		Summary: types.SummaryConfig{
			LatestPerCategory: viper.GetInt("summary.latest_per_category"),
		},
	}

	// The store path follows --data-dir unless the config file pins it.
	if cfg.Store.Path == "" {
		dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
		cfg.Store.Path = filepath.Join(dataDir, "papers.db")
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
