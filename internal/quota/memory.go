package quota

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count       int
	windowStart time.Time
}

// MemoryStore keeps quota counters in process memory. It backs the
// degraded mode when the durable store is unavailable, and tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Admit mirrors the SQLite store's semantics against a map.
func (s *MemoryStore) Admit(_ context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c, ok := s.counters[clientKey]
	if !ok || now.Sub(c.windowStart) >= window {
		c = &counter{count: 0, windowStart: now}
		s.counters[clientKey] = c
	}
	c.count++
	return admission(c.count, tierLimit, c.windowStart, window), nil
}

// Peek reports the client's standing without consuming an admission.
func (s *MemoryStore) Peek(_ context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c, ok := s.counters[clientKey]
	if !ok || now.Sub(c.windowStart) >= window {
		return freshAdmission(tierLimit), nil
	}
	adm := admission(c.count, tierLimit, c.windowStart, window)
	adm.Allowed = c.count < tierLimit
	return adm, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// SetClock overrides the store's clock. Tests only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
