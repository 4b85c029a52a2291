// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists paper metadata and analysis results in SQLite.
// Implements: prd003-store (R1-R4).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

const defaultDBPath = "data/papers.db"

// Store manages the paper database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the SQLite database at cfg.Path, creating
// parent directories and the schema as needed (R1.1).
func NewStore(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			categories TEXT,
			published TEXT,
			updated TEXT,
			pdf_url TEXT,
			link TEXT,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published)`,
		`CREATE TABLE IF NOT EXISTS analyses (
			paper_id TEXT NOT NULL,
			field TEXT NOT NULL,
			audience TEXT NOT NULL,
			status TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			key_contributions TEXT,
			importance TEXT,
			citation TEXT,
			reason_chosen TEXT,
			category TEXT,
			error TEXT,
			raw TEXT,
			created_at TEXT,
			PRIMARY KEY (paper_id, field, audience)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Upsert writes papers by id inside one transaction and returns the
// number written. Re-upserting an id overwrites every scalar field with
// the latest payload while the category set becomes the union of the
// stored and incoming lists, stored order first (R2.1-R2.3). The
// operation is idempotent.
func (s *Store) Upsert(ctx context.Context, papers []types.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for _, p := range papers {
		if p.ID == "" {
			continue
		}

		var existingJSON sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT categories FROM papers WHERE id = ?`, p.ID,
		).Scan(&existingJSON)
		if err != nil && err != sql.ErrNoRows {
			return count, fmt.Errorf("reading categories for %s: %w", p.ID, err)
		}

		if existingJSON.Valid {
			var existing []string
			if err := json.Unmarshal([]byte(existingJSON.String), &existing); err == nil {
				p.Categories = unionCategories(existing, p.Categories)
			}
		}

		authorsJSON, _ := json.Marshal(p.Authors)
		categoriesJSON, _ := json.Marshal(p.Categories)
		dataJSON, err := json.Marshal(p)
		if err != nil {
			return count, fmt.Errorf("encoding %s: %w", p.ID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO papers (id, title, authors, abstract, categories, published, updated, pdf_url, link, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, authors=excluded.authors,
				abstract=excluded.abstract, categories=excluded.categories,
				published=excluded.published, updated=excluded.updated,
				pdf_url=excluded.pdf_url, link=excluded.link, data=excluded.data`,
			p.ID, p.Title, string(authorsJSON), p.Abstract, string(categoriesJSON),
			timeColumn(p.Published), timeColumn(p.Updated), p.PDFURL, p.Link, string(dataJSON),
		)
		if err != nil {
			return count, fmt.Errorf("upserting paper %s: %w", p.ID, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return count, nil
}

// unionCategories merges incoming categories into the stored list,
// preserving stored order and appending new entries in incoming order.
func unionCategories(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, c := range existing {
		if c != "" && !seen[c] {
			seen[c] = true
			merged = append(merged, c)
		}
	}
	for _, c := range incoming {
		if c != "" && !seen[c] {
			seen[c] = true
			merged = append(merged, c)
		}
	}
	return merged
}
