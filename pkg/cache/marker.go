package cache

import (
	"context"
	"sync"
	"time"
)

// Marker remembers keys for a limited time. MarkOnce reports true only for
// the first caller within ttl; Unmark forgets a key so it can be marked again.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// MemoryMarker is a process-local Marker.
type MemoryMarker struct {
	mu   sync.Mutex
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryMarker returns an empty MemoryMarker.
func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{now: time.Now, seen: make(map[string]time.Time)}
}

// MarkOnce implements Marker.
func (m *MemoryMarker) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = now.Add(ttl)
	return true, nil
}

// Unmark implements Marker.
func (m *MemoryMarker) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.seen, key)
	m.mu.Unlock()
	return nil
}
