package entitystore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used by tests as the host's entity
// storage.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]map[string]map[string]any
	related  map[string][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]map[string]map[string]any),
		related:  make(map[string][]string),
	}
}

func relatedKey(kind, id, relation string) string {
	return fmt.Sprintf("%s:%s:%s", kind, id, relation)
}

// Put stores (or replaces) the state of an entity.
func (s *MemoryStore) Put(kind, id string, state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.entities[kind]
	if !ok {
		byID = make(map[string]map[string]any)
		s.entities[kind] = byID
	}
	cp := make(map[string]any, len(state))
	for k, v := range state {
		cp[k] = v
	}
	byID[id] = cp
}

// Update shallow-merges fields into an existing entity (or creates it).
func (s *MemoryStore) Update(kind, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.entities[kind]
	if !ok {
		byID = make(map[string]map[string]any)
		s.entities[kind] = byID
	}
	cur, ok := byID[id]
	if !ok {
		cur = make(map[string]any)
		byID[id] = cur
	}
	for k, v := range fields {
		cur[k] = v
	}
}

// SetRelated replaces the ids related to an entity through relation.
func (s *MemoryStore) SetRelated(kind, id, relation string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[relatedKey(kind, id, relation)] = append([]string(nil), ids...)
}

// Delete removes an entity and its relations.
func (s *MemoryStore) Delete(kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID, ok := s.entities[kind]; ok {
		delete(byID, id)
	}
	prefix := kind + ":" + id + ":"
	for k := range s.related {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(s.related, k)
		}
	}
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, kind, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.entities[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make(map[string]any, len(state))
	for k, v := range state {
		cp[k] = v
	}
	return cp, nil
}

// ReadMany implements BatchReader.
func (s *MemoryStore) ReadMany(ctx context.Context, kind string, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(ids))
	for _, id := range ids {
		state, err := s.Read(ctx, kind, id)
		if err != nil {
			continue
		}
		out[id] = state
	}
	return out, nil
}

// ReadRelated implements Store.
func (s *MemoryStore) ReadRelated(_ context.Context, kind, id, relation string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.related[relatedKey(kind, id, relation)]...), nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, kind, field, value string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, state := range s.entities[kind] {
		if v, ok := state[field]; ok && fmt.Sprint(v) == value {
			return id, nil
		}
	}
	return "", ErrNotFound
}
