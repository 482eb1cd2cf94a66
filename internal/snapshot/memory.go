package snapshot

import (
	"context"
	"sync"
	"time"
)

// entry is one live snapshot with its capture time.
type entry struct {
	data       map[string]any
	capturedAt time.Time
}

// MemoryStore is an in-process Store. Safe for concurrent use; snapshots of
// different keys never contend beyond the map lock.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]*entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]*entry),
		now:     time.Now,
	}
}

// Capture implements Store.
func (s *MemoryStore) Capture(_ context.Context, key Key, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return nil
	}
	s.entries[key] = &entry{data: clone(data), capturedAt: s.now()}
	return nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, key Key) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, key)
	return e.data, true, nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(_ context.Context, key Key) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return clone(e.data), true, nil
}

// Merge implements Store.
func (s *MemoryStore) Merge(_ context.Context, key Key, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &entry{data: clone(partial), capturedAt: s.now()}
		return nil
	}
	for k, v := range partial {
		e.data[k] = v
	}
	return nil
}

// Expire implements Store.
func (s *MemoryStore) Expire(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	dropped := 0
	for k, e := range s.entries {
		if e.capturedAt.Before(cutoff) {
			delete(s.entries, k)
			dropped++
		}
	}
	return dropped, nil
}

// Len returns the number of live snapshots.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
