// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digestkit/arxiv-digest/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the local paper database",
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show paper and analysis counts and database size",
	RunE:  runStoreStats,
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Database:  %s\n", cfg.Store.Path)
	fmt.Fprintf(os.Stdout, "Papers:    %d\n", stats.Papers)
	fmt.Fprintf(os.Stdout, "Analyses:  %d\n", stats.Analyses)
	fmt.Fprintf(os.Stdout, "Size:      %s\n", formatBytes(stats.SizeBytes))
	return nil
}

var storePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the database file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(pipelineConfig().Store.Path)
	},
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func init() {
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storePathCmd)

	rootCmd.AddCommand(storeCmd)
}
