package entitystore

import (
	"context"
	"sync"
)

// Overlay serves entity state pushed alongside notifications and falls back
// to a base store for everything else. One Overlay lives for one ingest
// request; it is never shared across requests.
type Overlay struct {
	base Store

	mu      sync.RWMutex
	states  map[string]map[string]any
	related map[string][]string
	gone    map[string]bool
}

// NewOverlay wraps base. base may be nil, in which case anything not pushed
// reads as ErrNotFound.
func NewOverlay(base Store) *Overlay {
	return &Overlay{
		base:    base,
		states:  make(map[string]map[string]any),
		related: make(map[string][]string),
		gone:    make(map[string]bool),
	}
}

func overlayKey(kind, id string) string {
	return kind + ":" + id
}

// Push records the state of an entity as of now. Relations found under the
// reserved "_related" key (relation name to id list) are split out.
func (o *Overlay) Push(kind, id string, state map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cp := make(map[string]any, len(state))
	for k, v := range state {
		if k == "_related" {
			if rels, ok := v.(map[string]any); ok {
				for name, ids := range rels {
					o.related[relatedKey(kind, id, name)] = toStrings(ids)
				}
			}
			continue
		}
		cp[k] = v
	}
	o.states[overlayKey(kind, id)] = cp
	delete(o.gone, overlayKey(kind, id))
}

// MarkDeleted makes subsequent reads of the entity return ErrNotFound.
func (o *Overlay) MarkDeleted(kind, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, overlayKey(kind, id))
	o.gone[overlayKey(kind, id)] = true
}

// Read implements Store.
func (o *Overlay) Read(ctx context.Context, kind, id string) (map[string]any, error) {
	o.mu.RLock()
	state, ok := o.states[overlayKey(kind, id)]
	gone := o.gone[overlayKey(kind, id)]
	o.mu.RUnlock()

	if ok {
		cp := make(map[string]any, len(state))
		for k, v := range state {
			cp[k] = v
		}
		return cp, nil
	}
	if gone || o.base == nil {
		return nil, ErrNotFound
	}
	return o.base.Read(ctx, kind, id)
}

// ReadRelated implements Store.
func (o *Overlay) ReadRelated(ctx context.Context, kind, id, relation string) ([]string, error) {
	o.mu.RLock()
	ids, ok := o.related[relatedKey(kind, id, relation)]
	_, pushed := o.states[overlayKey(kind, id)]
	o.mu.RUnlock()

	if ok {
		return append([]string{}, ids...), nil
	}
	if pushed || o.base == nil {
		return []string{}, nil
	}
	return o.base.ReadRelated(ctx, kind, id, relation)
}

// Lookup implements Store.
func (o *Overlay) Lookup(ctx context.Context, kind, field, value string) (string, error) {
	if o.base == nil {
		return "", ErrNotFound
	}
	return o.base.Lookup(ctx, kind, field, value)
}

// toStrings converts a decoded JSON list of ids into strings.
func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return append([]string{}, ss...)
		}
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, IDString(item))
	}
	return out
}

type overlayCtxKey struct{}

// WithOverlay attaches a request's overlay to ctx.
func WithOverlay(ctx context.Context, o *Overlay) context.Context {
	return context.WithValue(ctx, overlayCtxKey{}, o)
}

// OverlayFrom returns the overlay attached to ctx, if any.
func OverlayFrom(ctx context.Context) *Overlay {
	o, _ := ctx.Value(overlayCtxKey{}).(*Overlay)
	return o
}

// Scoped is the store long-lived components hold. Reads go through the
// overlay attached to the context when there is one, and to base otherwise.
type Scoped struct {
	base Store
}

// NewScoped wraps base. base may be nil when all state is pushed.
func NewScoped(base Store) *Scoped {
	return &Scoped{base: base}
}

// Base returns the wrapped store.
func (s *Scoped) Base() Store {
	return s.base
}

func (s *Scoped) store(ctx context.Context) Store {
	if o := OverlayFrom(ctx); o != nil {
		return o
	}
	if s.base == nil {
		return NewOverlay(nil)
	}
	return s.base
}

// Read implements Store.
func (s *Scoped) Read(ctx context.Context, kind, id string) (map[string]any, error) {
	return s.store(ctx).Read(ctx, kind, id)
}

// ReadRelated implements Store.
func (s *Scoped) ReadRelated(ctx context.Context, kind, id, relation string) ([]string, error) {
	return s.store(ctx).ReadRelated(ctx, kind, id, relation)
}

// Lookup implements Store.
func (s *Scoped) Lookup(ctx context.Context, kind, field, value string) (string, error) {
	return s.store(ctx).Lookup(ctx, kind, field, value)
}
