// Package cache is the content-addressed store of previously computed
// enrichment and classification results, keyed by product fingerprint.
// Entries have no expiry within a run and persist across runs; backend
// failures must degrade to a miss, never fail a row.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/promdata/mtr-cli/internal/model"
)

// Entry is one cached enrichment result.
type Entry struct {
	Key            string                      `json:"key"`
	Record         *model.EnrichedRecord       `json:"record"`
	Classification *model.ClassificationResult `json:"classification"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// Stats reports the size of a cache backend.
type Stats struct {
	Entries int64     `json:"entries"`
	Oldest  time.Time `json:"oldest,omitempty"`
}

// Cache is the persistence interface consumed by the pipeline.
// Get is side-effect free; Put is idempotent (storing the same key twice
// is not an observable effect beyond last-write-wins).
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Memory is an in-process Cache used when no persistence is configured
// and as the degraded fallback when a backend fails to open. Safe for
// concurrent use from all workers.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *Memory) Put(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Entries: int64(len(m.entries))}
	for _, e := range m.entries {
		if s.Oldest.IsZero() || e.CreatedAt.Before(s.Oldest) {
			s.Oldest = e.CreatedAt
		}
	}
	return s, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

func (m *Memory) Close() error { return nil }

// Nop is a Cache that never hits and never stores. It backs the
// explicit no-cache mode.
type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }
func (Nop) Put(context.Context, string, *Entry) error         { return nil }
func (Nop) Stats(context.Context) (Stats, error)              { return Stats{}, nil }
func (Nop) Clear(context.Context) error                       { return nil }
func (Nop) Close() error                                      { return nil }
