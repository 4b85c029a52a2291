// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// SaveAnalyses writes analysis results inside one transaction. Results
// are keyed by (paper_id, field, audience); re-running a pair replaces
// the stored rows (R4.1, R4.2).
func (s *Store) SaveAnalyses(ctx context.Context, results []types.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO analyses
			(paper_id, field, audience, status, title, authors, key_contributions,
			 importance, citation, reason_chosen, category, error, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.ExecContext(ctx,
			r.PaperID, r.Field, r.Audience, string(r.Status),
			r.Title, r.Authors, r.KeyContributions,
			r.Importance, r.Citation, r.ReasonChosen,
			r.Category, r.Error, r.Raw, timeColumn(r.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("saving analysis for %s: %w", r.PaperID, err)
		}
	}

	return tx.Commit()
}

// AnalysesFor returns the stored results for one (field, audience) pair
// ordered by paper id.
func (s *Store) AnalysesFor(ctx context.Context, field, audience string) ([]types.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT paper_id, field, audience, status, title, authors, key_contributions,
			importance, citation, reason_chosen, category, error, raw, created_at
		 FROM analyses WHERE field = ? AND audience = ?
		 ORDER BY paper_id ASC`,
		field, audience,
	)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var results []types.AnalysisResult
	for rows.Next() {
		var (
			r         types.AnalysisResult
			status    string
			createdAt string
		)
		if err := rows.Scan(
			&r.PaperID, &r.Field, &r.Audience, &status,
			&r.Title, &r.Authors, &r.KeyContributions,
			&r.Importance, &r.Citation, &r.ReasonChosen,
			&r.Category, &r.Error, &r.Raw, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Status = types.AnalysisStatus(status)
		if createdAt != "" {
			if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
				r.CreatedAt = t
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
