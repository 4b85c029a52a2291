// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/digestkit/arxiv-digest/internal/store"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored papers by text, date range, and category",
	Long: `Search queries the local paper store. Free text matches titles,
abstracts, and author names as a case-insensitive substring; all filters
combine conjunctively. Without a date range the last 7 days are searched.

Results print newest first as a table, or as JSON with --json.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "free-text search over title, abstract, and authors")
	searchCmd.Flags().String("from", "", "first day included, YYYY-MM-DD")
	searchCmd.Flags().String("to", "", "last day included, YYYY-MM-DD")
	searchCmd.Flags().StringSlice("category", nil, "keep papers listed under this category, repeatable")
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = default 50)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	opts, err := searchOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if opts.Text == "" && len(opts.Categories) == 0 && !cmd.Flags().Changed("from") && !cmd.Flags().Changed("to") {
		return fmt.Errorf("query or filter required: provide a search query, --category, --from, or --to")
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	papers, err := st.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(papers, jsonOutput)
}

func searchOptsFromFlags(cmd *cobra.Command, args []string) (store.SearchOptions, error) {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	categories, _ := cmd.Flags().GetStringSlice("category")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.SearchOptions{
		Text:       queryText,
		Categories: categories,
		Limit:      limit,
	}

	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	switch {
	case fromStr == "" && toStr == "":
		// No explicit range: search the last 7 whole days.
		opts.From, opts.To = types.DefaultRange(time.Now())
	default:
		if fromStr != "" {
			from, err := types.ParseDay(fromStr)
			if err != nil {
				return opts, err
			}
			opts.From = from
		}
		if toStr != "" {
			to, err := types.ParseDay(toStr)
			if err != nil {
				return opts, err
			}
			// --to names the last day included; the store takes a
			// half-open bound.
			_, opts.To = types.DayRange(to)
		}
	}

	return opts, nil
}

func formatSearchOutput(papers []types.Paper, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}

	if len(papers) == 0 {
		fmt.Println("No papers found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-14s  %-10s  %-8s  %-50s  %s\n",
		"ID", "Published", "Category", "Title", "Authors")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, p := range papers {
		title := p.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		authors := strings.Join(p.Authors, ", ")
		if len(authors) > 30 {
			authors = authors[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-10s  %-8s  %-50s  %s\n",
			p.ID, p.Published.UTC().Format(types.DayFormat), p.PrimaryCategory(), title, authors)
	}

	fmt.Fprintf(os.Stdout, "\n%d papers\n", len(papers))
	return nil
}
