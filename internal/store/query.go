// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

const defaultSearchLimit = 50

// SearchOptions holds parameters for paper queries (R3). All filters are
// conjunctive.
type SearchOptions struct {
	// Text matches as a case-insensitive substring across title,
	// abstract, and authors (R3.1).
	Text string

	// From and To bound the published timestamp, half-open [From, To).
	From time.Time
	To   time.Time

	// Categories keeps papers listed under any of the given categories.
	Categories []string

	// Limit caps the result count. Zero uses the default (50).
	Limit int
}

// IsEmpty reports whether the query has no search terms or filters.
func (o SearchOptions) IsEmpty() bool {
	return o.Text == "" && o.From.IsZero() && o.To.IsZero() && len(o.Categories) == 0
}

// Search returns papers matching every given filter, newest first with
// ties broken by id (R3.2-R3.5).
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]types.Paper, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT data FROM papers WHERE 1=1`)

	if opts.Text != "" {
		qb.WriteString(` AND (instr(lower(title), lower(?)) > 0
			OR instr(lower(abstract), lower(?)) > 0
			OR instr(lower(authors), lower(?)) > 0)`)
		args = append(args, opts.Text, opts.Text, opts.Text)
	}

	if !opts.From.IsZero() {
		qb.WriteString(` AND published >= ?`)
		args = append(args, timeColumn(opts.From))
	}
	if !opts.To.IsZero() {
		qb.WriteString(` AND published < ?`)
		args = append(args, timeColumn(opts.To))
	}

	if len(opts.Categories) > 0 {
		clauses := make([]string, len(opts.Categories))
		for i, c := range opts.Categories {
			clauses[i] = `EXISTS (SELECT 1 FROM json_each(categories) WHERE value = ?)`
			args = append(args, c)
		}
		qb.WriteString(` AND (` + strings.Join(clauses, " OR ") + `)`)
	}

	qb.WriteString(` ORDER BY published DESC, id ASC LIMIT ?`)
	args = append(args, limit)

	return s.queryPapers(ctx, qb.String(), args...)
}

// PapersFor returns the papers listed under category that were published
// during the UTC day, newest first. The resolver uses this as the
// durable tier of the lookup order.
func (s *Store) PapersFor(ctx context.Context, category string, day time.Time) ([]types.Paper, error) {
	start, end := types.DayRange(day)
	return s.queryPapers(ctx,
		`SELECT data FROM papers
		 WHERE EXISTS (SELECT 1 FROM json_each(categories) WHERE value = ?)
		   AND published >= ? AND published < ?
		 ORDER BY published DESC, id ASC`,
		category, timeColumn(start), timeColumn(end),
	)
}

// queryPapers runs a SELECT over the data column and decodes each row.
func (s *Store) queryPapers(ctx context.Context, query string, args ...any) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var p types.Paper
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decoding paper record: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// Stats summarizes the database for inspection commands.
type Stats struct {
	Papers    int
	Analyses  int
	SizeBytes int64
}

// Stats returns table counts and the database file size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&st.Papers); err != nil {
		return st, fmt.Errorf("counting papers: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM analyses`).Scan(&st.Analyses); err != nil {
		return st, fmt.Errorf("counting analyses: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}
	return st, nil
}

// timeColumn formats a timestamp for the text columns used in range
// comparisons. UTC RFC 3339 keeps lexicographic and chronological order
// aligned. Zero times store as the empty string.
func timeColumn(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
