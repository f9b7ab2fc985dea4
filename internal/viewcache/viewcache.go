// Package viewcache caches rendered dashboard views by view path and lets
// mutations invalidate them. The project service only depends on the
// Invalidator interface, so the core stays testable without a rendering
// layer or a cache backend present.
package viewcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Invalidator is the write-side hook: after a successful mutation the
// affected view keys are dropped.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Cache is the full read/write surface used by the rendering layer.
type Cache interface {
	Invalidator
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ProjectListKey is the view path for an organization's project listing.
func ProjectListKey(orgID string) string {
	return fmt.Sprintf("/orgs/%s/dashboard/projects", orgID)
}

// ProjectDetailKey is the view path for a single project's dashboard page.
func ProjectDetailKey(projectID string) string {
	return fmt.Sprintf("/dashboard/projects/%s", projectID)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache used in development (sqlite deployments)
// and in tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the cached value for key, or false if absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Put stores value under key. A zero ttl means no expiry.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Invalidate drops the given keys.
func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}
