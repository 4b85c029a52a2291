// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultCapacity = 256

// timeNow is stubbed in tests to control expiry.
var timeNow = time.Now

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Cache with TTL expiry and least-recently-used
// eviction once the capacity is reached. It never returns infrastructure
// errors.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

// NewMemory returns a Memory cache holding at most capacity entries.
// A non-positive capacity uses the default (256).
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Memory{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key, or ErrMiss when absent or expired.
// Expired entries are removed on access.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	ent := el.Value.(*memoryEntry)
	if ent.expired(timeNow()) {
		m.remove(el)
		return nil, ErrMiss
	}
	m.order.MoveToFront(el)
	return ent.value, nil
}

// Set stores value under key for ttl, evicting the least recently used
// entry when the cache is full.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = timeNow().Add(ttl)
	}

	if el, ok := m.entries[key]; ok {
		ent := el.Value.(*memoryEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.entries[key] = el

	for m.order.Len() > m.capacity {
		if back := m.order.Back(); back != nil {
			m.remove(back)
		}
	}
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.remove(el)
	}
	return nil
}

// Close is a no-op for the in-process cache.
func (m *Memory) Close() error { return nil }

// Len returns the current entry count, including not-yet-collected
// expired entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// remove drops an element from both the list and the index. Callers hold
// the lock.
func (m *Memory) remove(el *list.Element) {
	ent := el.Value.(*memoryEntry)
	m.order.Remove(el)
	delete(m.entries, ent.key)
}
