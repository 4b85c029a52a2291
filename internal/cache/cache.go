// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides the volatile fast tier in front of the durable
// store. Entries expire after a TTL; a cache outage is never fatal to the
// pipeline, callers degrade to the next tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digestkit/arxiv-digest/pkg/types"
)

// ErrMiss reports that a key is absent or expired. Any other error from
// Get means the cache itself is unavailable.
var ErrMiss = errors.New("cache: miss")

// Cache is the fast lookup tier. Implementations must treat values as
// opaque bytes.
type Cache interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A non-positive ttl stores the
	// value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying connections.
	Close() error
}

// Key returns the cache key for one category and UTC day,
// e.g. "arxiv:cs.AI:2024-12-30".
func Key(category string, day time.Time) string {
	return fmt.Sprintf("arxiv:%s:%s", category, day.UTC().Format(types.DayFormat))
}

// New builds the cache selected by cfg.Backend. Memory is the default.
func New(cfg types.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case types.CacheRedis:
		return NewRedis(cfg), nil
	case types.CacheMemory, "":
		return NewMemory(cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
