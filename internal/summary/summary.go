// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summary aggregates fetched papers into per-category counts,
// latest-paper listings, and a cross-listing map.
package summary

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// DefaultLatestPerCategory caps the per-category listing when the caller
// does not say otherwise.
const DefaultLatestPerCategory = 5

// CrossRef points at a cross-listed paper from one of its secondary
// categories.
type CrossRef struct {
	PaperID string
	Title   string
	Primary string
}

// Summary is the aggregate view of one fetch. Deterministic for a fixed
// input set. Per prd005-summary R1.1-R1.4.
type Summary struct {
	// TotalOverall counts every distinct paper in the input.
	TotalOverall int

	// TotalInPrimaryCategories counts papers whose primary category is one
	// of the requested categories.
	TotalInPrimaryCategories int

	// PerCategoryCounts counts papers by primary category.
	PerCategoryCounts map[string]int

	// LatestPerCategory lists the most recent papers per primary category,
	// published descending with ties broken by id ascending.
	LatestPerCategory map[string][]types.Paper

	// CrossListed maps each secondary category to the papers cross-listed
	// into it, sorted by paper id.
	CrossListed map[string][]CrossRef

	// Days lists the input days in ascending order.
	Days []string
}

// Summarize aggregates papers grouped by day. Papers appearing under more
// than one day, or more than once within a day (a cross-listed paper fetched
// via two categories), count once; the first occurrence in day order wins.
func Summarize(byDay map[string][]types.Paper, primary []string, latestN int) Summary {
	if latestN <= 0 {
		latestN = DefaultLatestPerCategory
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	primarySet := make(map[string]bool, len(primary))
	for _, c := range primary {
		primarySet[c] = true
	}

	s := Summary{
		PerCategoryCounts: map[string]int{},
		LatestPerCategory: map[string][]types.Paper{},
		CrossListed:       map[string][]CrossRef{},
		Days:              days,
	}

	seen := make(map[string]bool)
	for _, day := range days {
		for _, p := range byDay[day] {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			s.TotalOverall++

			pc := p.PrimaryCategory()
			if pc == "" {
				continue
			}
			s.PerCategoryCounts[pc]++
			if primarySet[pc] {
				s.TotalInPrimaryCategories++
			}
			s.LatestPerCategory[pc] = append(s.LatestPerCategory[pc], p)

			for _, sec := range p.SecondaryCategories() {
				s.CrossListed[sec] = append(s.CrossListed[sec], CrossRef{
					PaperID: p.ID,
					Title:   p.Title,
					Primary: pc,
				})
			}
		}
	}

	for cat, ps := range s.LatestPerCategory {
		sort.Slice(ps, func(i, j int) bool {
			if !ps[i].Published.Equal(ps[j].Published) {
				return ps[i].Published.After(ps[j].Published)
			}
			return ps[i].ID < ps[j].ID
		})
		if len(ps) > latestN {
			ps = ps[:latestN]
		}
		s.LatestPerCategory[cat] = ps
	}

	for cat, refs := range s.CrossListed {
		sort.Slice(refs, func(i, j int) bool {
			return refs[i].PaperID < refs[j].PaperID
		})
		s.CrossListed[cat] = refs
	}

	return s
}

// WriteText writes a human-readable rendering of the summary.
func WriteText(w io.Writer, s Summary) {
	if s.TotalOverall == 0 {
		fmt.Fprintln(w, "No papers fetched.")
		return
	}

	fmt.Fprintf(w, "%d papers for %s (%d in requested categories)\n",
		s.TotalOverall, strings.Join(s.Days, ", "), s.TotalInPrimaryCategories)

	cats := make([]string, 0, len(s.PerCategoryCounts))
	for c := range s.PerCategoryCounts {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		fmt.Fprintf(w, "\n%s: %d papers\n", cat, s.PerCategoryCounts[cat])
		for _, p := range s.LatestPerCategory[cat] {
			title := p.Title
			if len(title) > 70 {
				title = title[:67] + "..."
			}
			fmt.Fprintf(w, "  %-14s %s\n", p.ID, title)
		}
	}

	if len(s.CrossListed) == 0 {
		return
	}
	fmt.Fprintln(w, "\nCross-listed:")
	crossCats := make([]string, 0, len(s.CrossListed))
	for c := range s.CrossListed {
		crossCats = append(crossCats, c)
	}
	sort.Strings(crossCats)
	for _, cat := range crossCats {
		for _, ref := range s.CrossListed[cat] {
			fmt.Fprintf(w, "  %s: %s (primary %s)\n", cat, ref.PaperID, ref.Primary)
		}
	}
}
