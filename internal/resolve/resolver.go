// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve implements the tiered lookup for one category and day:
// fast cache, then durable store, then the upstream fetcher, writing
// through on every miss. Concurrent lookups for the same key share a
// single upstream fetch.
// Implements: prd002-cache (R2-R4).
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/digestkit/arxiv-digest/internal/cache"
	"github.com/digestkit/arxiv-digest/internal/store"
	"github.com/digestkit/arxiv-digest/pkg/types"
)

const (
	defaultTTL         = 24 * time.Hour
	defaultConcurrency = 2
)

// PaperSource fetches a category's papers from the upstream repository.
type PaperSource interface {
	FetchCategory(ctx context.Context, category string, day time.Time) ([]types.Paper, error)
}

// Resolver looks up papers through the cache hierarchy.
type Resolver struct {
	Cache   cache.Cache
	Store   *store.Store
	Fetcher PaperSource
	TTL     time.Duration
	Log     *slog.Logger

	group singleflight.Group
}

// New builds a Resolver. A non-positive cfg.TTL uses the default (24h).
func New(c cache.Cache, st *store.Store, f PaperSource, cfg types.CacheConfig) *Resolver {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Resolver{
		Cache:   c,
		Store:   st,
		Fetcher: f,
		TTL:     ttl,
		Log:     slog.Default(),
	}
}

// Resolve returns the papers for one category and UTC day.
//
// Without force the tiers are consulted in order: cache, store, fetcher,
// and every miss writes through to the tiers above. Concurrent calls for
// the same key trigger at most one store read and upstream fetch; all
// callers share the result. A cache outage degrades to the next tier and
// is logged, never fatal (R2.4).
//
// With force both read tiers are bypassed and the fetch happens
// unconditionally; the result still writes through so the store stays
// current and the cache warm (R3.2).
func (r *Resolver) Resolve(ctx context.Context, category string, day time.Time, force bool) ([]types.Paper, error) {
	key := cache.Key(category, day)

	if force {
		// Drop any in-flight result so later callers cannot piggyback
		// on data from before the refresh.
		r.group.Forget(key)
		return r.refresh(ctx, key, category, day)
	}

	if papers, ok := r.fromCache(ctx, key); ok {
		return papers, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		papers, err := r.Store.PapersFor(ctx, category, day)
		if err != nil {
			r.log().Warn("store read failed, falling through to fetch", "key", key, "error", err)
		} else if len(papers) > 0 {
			r.fillCache(ctx, key, papers)
			return papers, nil
		}
		return r.refresh(ctx, key, category, day)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Paper), nil
}

// refresh fetches upstream and writes through. A store write failure is
// fatal for the resolve; a cache write failure is only logged.
func (r *Resolver) refresh(ctx context.Context, key, category string, day time.Time) ([]types.Paper, error) {
	papers, err := r.Fetcher.FetchCategory(ctx, category, day)
	if err != nil {
		return nil, err
	}
	if _, err := r.Store.Upsert(ctx, papers); err != nil {
		return nil, fmt.Errorf("persisting %s: %w", key, err)
	}
	r.fillCache(ctx, key, papers)
	return papers, nil
}

func (r *Resolver) fromCache(ctx context.Context, key string) ([]types.Paper, bool) {
	raw, err := r.Cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		r.log().Warn("cache unavailable, degrading", "key", key, "error", err)
		return nil, false
	}

	var papers []types.Paper
	if err := json.Unmarshal(raw, &papers); err != nil {
		r.log().Warn("cache entry corrupt, refetching", "key", key, "error", err)
		return nil, false
	}
	return papers, true
}

// fillCache stores the record set under key. An empty set is cached too,
// so quiet days do not refetch until the TTL lapses.
func (r *Resolver) fillCache(ctx context.Context, key string, papers []types.Paper) {
	if papers == nil {
		papers = []types.Paper{}
	}
	raw, err := json.Marshal(papers)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, raw, r.TTL); err != nil {
		r.log().Warn("cache write failed", "key", key, "error", err)
	}
}

func (r *Resolver) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// CategoryResult pairs one category with its resolved papers or failure.
type CategoryResult struct {
	Category string
	Papers   []types.Paper
	Err      error
}

// ResolveAll resolves every category for the day with at most concurrency
// lookups in flight. Categories fail independently; the returned slice
// matches the input order.
func (r *Resolver) ResolveAll(ctx context.Context, categories []string, day time.Time, force bool, concurrency int) []CategoryResult {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]CategoryResult, len(categories))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, category := range categories {
		g.Go(func() error {
			papers, err := r.Resolve(ctx, category, day, force)
			results[i] = CategoryResult{Category: category, Papers: papers, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
