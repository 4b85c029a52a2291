// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/digestkit/arxiv-digest/internal/arxiv"
	"github.com/digestkit/arxiv-digest/internal/cache"
	"github.com/digestkit/arxiv-digest/internal/resolve"
	"github.com/digestkit/arxiv-digest/internal/store"
	"github.com/digestkit/arxiv-digest/internal/summary"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one day of paper metadata per category",
	Long: `Fetch resolves each category for one UTC day through the cache, the
local store, and finally the arXiv API, writing fresh results through to
both storage tiers. Without --date the most recent complete UTC day is
fetched. With --force cached and stored data are bypassed and the day is
refetched from the API.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("date", "", "UTC day to fetch, YYYY-MM-DD (default: yesterday)")
	fetchCmd.Flags().StringSlice("category", nil, "category to fetch, repeatable (default: configured categories)")
	fetchCmd.Flags().Bool("force", false, "bypass cache and store, refetch from the API")
	fetchCmd.Flags().Int("concurrency", 0, "categories resolved in parallel (0 = configured default)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	day, err := flagDay(cmd)
	if err != nil {
		return err
	}
	categories, _ := cmd.Flags().GetStringSlice("category")
	if len(categories) == 0 {
		categories = cfg.Fetch.Categories
	}
	if len(categories) == 0 {
		return fmt.Errorf("no categories: pass --category or set fetch.categories in the config")
	}
	force, _ := cmd.Flags().GetBool("force")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Fetch.Concurrency
	}

	resolver, cleanup, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dayStr := day.Format(types.DayFormat)
	fmt.Fprintf(os.Stdout, "Fetching %d categor(ies) for %s\n", len(categories), dayStr)

	results := resolver.ResolveAll(context.Background(), categories, day, force, concurrency)

	byDay := map[string][]types.Paper{dayStr: nil}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "warning: %s failed: %v\n", r.Category, r.Err)
			continue
		}
		byDay[dayStr] = append(byDay[dayStr], r.Papers...)
	}

	s := summary.Summarize(byDay, categories, cfg.Summary.LatestPerCategory)
	summary.WriteText(os.Stdout, s)

	if failed > 0 {
		return fmt.Errorf("%d categor(ies) failed", failed)
	}
	return nil
}

// flagDay parses --date, defaulting to the last complete UTC day.
func flagDay(cmd *cobra.Command) (time.Time, error) {
	dateStr, _ := cmd.Flags().GetString("date")
	if dateStr == "" {
		return types.Yesterday(time.Now()), nil
	}
	return types.ParseDay(dateStr)
}

// newResolver wires the cache, store, and fetcher into a resolver. The
// returned cleanup closes both storage tiers.
func newResolver(cfg types.PipelineConfig) (*resolve.Resolver, func(), error) {
	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewStore(cfg.Store)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	fetcher := arxiv.NewFetcher(cfg.Fetch)

	cleanup := func() {
		st.Close()
		c.Close()
	}
	return resolve.New(c, st, fetcher, cfg.Cache), cleanup, nil
}
