// Package snapshot holds "before" state captured ahead of an entity mutation
// so it can be compared with the state after the mutation. Each slot is keyed
// by entity kind and id; at most one snapshot is live per key, and reading it
// for comparison removes it.
//
// Two backends exist: an in-process memory store for the single-request
// pipeline and a Redis store with a short TTL for flows where "before" and
// "after" arrive in different requests.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt is returned internally when a stored snapshot cannot be decoded.
// Backends never surface it to callers: a corrupt snapshot reads as absent.
var ErrCorrupt = errors.New("snapshot: corrupt payload")

// Key identifies a snapshot slot.
type Key struct {
	Kind string
	ID   string
}

// NewKey builds a Key.
func NewKey(kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

// String renders the key as "kind:id".
func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Store is the snapshot holding area.
type Store interface {
	// Capture inserts data under key if no snapshot is live for it. A second
	// capture for a live key is a no-op: the first writer wins.
	Capture(ctx context.Context, key Key, data map[string]any) error

	// Consume reads and removes the snapshot for key. ok is false when none
	// is live, which callers treat as "no old data".
	Consume(ctx context.Context, key Key) (data map[string]any, ok bool, err error)

	// Peek reads the snapshot for key without removing it.
	Peek(ctx context.Context, key Key) (data map[string]any, ok bool, err error)

	// Merge shallow-merges partial into the live snapshot for key, creating
	// it when absent. Keys in partial overwrite keys already captured.
	Merge(ctx context.Context, key Key, partial map[string]any) error

	// Expire drops snapshots captured longer than olderThan ago and returns
	// how many were dropped.
	Expire(ctx context.Context, olderThan time.Duration) (int, error)
}

// clone returns a shallow copy of m so stored snapshots are not aliased by
// callers that keep mutating their maps.
func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
