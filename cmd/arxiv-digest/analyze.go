// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/digestkit/arxiv-digest/internal/analyze"
	"github.com/digestkit/arxiv-digest/internal/retry"
	"github.com/digestkit/arxiv-digest/internal/store"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a day of paper abstracts through the model API",
	Long: `Analyze loads one UTC day of papers from the store (fetching first when
the day is absent), sends the abstracts to the model in batches, and saves
the structured analyses back to the store. A YAML report with the run
parameters, per-paper results, and stats is written to the output
directory.

The API key is read from OPENROUTER_API_KEY or .secrets/openrouter-api-key.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("date", "", "UTC day to analyze, YYYY-MM-DD (default: yesterday)")
	analyzeCmd.Flags().String("field", "ml", "practitioner field the analysis is framed for")
	analyzeCmd.Flags().String("audience", "technical", "audience register: technical or general")
	analyzeCmd.Flags().Int("batch-size", 0, "papers per API call (0 = configured default)")
	analyzeCmd.Flags().Duration("delay", 0, "pause between batches (0 = configured default)")
	analyzeCmd.Flags().Bool("continue-on-error", true, "keep going past a failed batch")
	analyzeCmd.Flags().Int("limit", 0, "analyze at most N papers (0 = all)")
	analyzeCmd.Flags().String("output", "", "report file path (default: <output-dir>/analysis-<date>-<field>-<audience>.yaml)")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	ctx := context.Background()

	day, err := flagDay(cmd)
	if err != nil {
		return err
	}
	opts, err := analyzeOptions(cmd, cfg.Analyze)
	if err != nil {
		return err
	}

	apiKey := secretDefault("openrouter-api-key", firstNonEmpty(cfg.Analyze.APIKey, os.Getenv("OPENROUTER_API_KEY")))
	if apiKey == "" {
		return fmt.Errorf("no API key: set OPENROUTER_API_KEY or create .secrets/openrouter-api-key")
	}
	cfg.Analyze.APIKey = apiKey

	papers, err := papersForDay(ctx, cfg, day)
	if err != nil {
		return err
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	if len(papers) == 0 {
		fmt.Println("No papers to analyze.")
		return nil
	}

	dayStr := day.Format(types.DayFormat)
	fmt.Fprintf(os.Stdout, "Analyzing %d paper(s) for %s (field %s, audience %s, model %s)\n",
		len(papers), dayStr, opts.Field, opts.Audience, cfg.Analyze.Model)

	analyzer := &analyze.Analyzer{
		Backend:  analyze.NewOpenRouter(cfg.Analyze),
		Retry:    retry.Policy{MaxRetries: cfg.Analyze.MaxRetries},
		Log:      slog.Default(),
		Progress: os.Stdout,
	}
	results, stats, runErr := analyzer.Run(ctx, papers, opts)

	// Persist whatever the run produced, even after an abort.
	if len(results) > 0 {
		st, err := store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		saveErr := st.SaveAnalyses(ctx, results)
		st.Close()
		if saveErr != nil {
			return fmt.Errorf("saving analyses: %w", saveErr)
		}
	}

	outPath, err := writeRunReport(cmd, cfg.Analyze, dayStr, opts, results, stats)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nAnalyzed %d paper(s): %d succeeded, %d failed, %d skipped\n",
		stats.Total(), stats.Succeeded, stats.Failed, stats.Skipped)
	fmt.Fprintf(os.Stdout, "Report written to %s\n", outPath)

	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed analysis", stats.Failed)
	}
	return nil
}

// analyzeOptions merges analyze flags over the configured defaults.
func analyzeOptions(cmd *cobra.Command, cfg types.AnalyzeConfig) (analyze.Options, error) {
	field, _ := cmd.Flags().GetString("field")
	audience, _ := cmd.Flags().GetString("audience")
	if field == "" || audience == "" {
		return analyze.Options{}, fmt.Errorf("--field and --audience must not be empty")
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize == 0 {
		batchSize = cfg.BatchSize
	}
	delay, _ := cmd.Flags().GetDuration("delay")
	if delay == 0 {
		delay = cfg.BatchDelay
	}
	continueOnError := cfg.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	return analyze.Options{
		Field:           field,
		Audience:        audience,
		BatchSize:       batchSize,
		Delay:           delay,
		ContinueOnError: continueOnError,
		MaxRetries:      cfg.MaxRetries,
	}, nil
}

// papersForDay resolves every configured category for the day and returns
// the union, deduplicated across cross-listings, newest first.
func papersForDay(ctx context.Context, cfg types.PipelineConfig, day time.Time) ([]types.Paper, error) {
	resolver, cleanup, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	results := resolver.ResolveAll(ctx, cfg.Fetch.Categories, day, false, cfg.Fetch.Concurrency)

	seen := make(map[string]bool)
	var papers []types.Paper
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "warning: %s failed: %v\n", r.Category, r.Err)
			continue
		}
		for _, p := range r.Papers {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			papers = append(papers, p)
		}
	}
	if failed == len(results) && failed > 0 {
		return nil, fmt.Errorf("all %d categor(ies) failed to resolve", failed)
	}

	sort.Slice(papers, func(i, j int) bool {
		if !papers[i].Published.Equal(papers[j].Published) {
			return papers[i].Published.After(papers[j].Published)
		}
		return papers[i].ID < papers[j].ID
	})
	return papers, nil
}

// writeRunReport writes the YAML run report and returns its path.
func writeRunReport(cmd *cobra.Command, cfg types.AnalyzeConfig, dayStr string, opts analyze.Options, results []types.AnalysisResult, stats types.RunStats) (string, error) {
	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = filepath.Join(cfg.OutputDir,
			fmt.Sprintf("analysis-%s-%s-%s.yaml", dayStr, opts.Field, opts.Audience))
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}

	params := analyze.RunParams{
		Date:      dayStr,
		Field:     opts.Field,
		Audience:  opts.Audience,
		Model:     cfg.Model,
		BatchSize: opts.BatchSize,
		Delay:     opts.Delay.String(),
		Timestamp: time.Now(),
	}
	if err := analyze.WriteReport(outPath, params, results, stats); err != nil {
		return "", err
	}
	return outPath, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
