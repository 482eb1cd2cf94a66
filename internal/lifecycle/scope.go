package lifecycle

import (
	"context"
	"sync"

	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

// Guard remembers which (event, kind, id) triples were already processed
// within one request, so a mutation reported twice by the host is logged
// once. A Guard is never shared across requests.
type Guard struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]bool)}
}

// First marks the triple as processed and reports whether this was the
// first time. A nil guard lets everything through.
func (g *Guard) First(event Event, kind, id string) bool {
	if g == nil {
		return true
	}
	key := string(event) + "|" + kind + "|" + id

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}

type guardCtxKey struct{}
type correlationCtxKey struct{}

// WithGuard attaches g to ctx.
func WithGuard(ctx context.Context, g *Guard) context.Context {
	return context.WithValue(ctx, guardCtxKey{}, g)
}

// GuardFrom returns the guard attached to ctx, or nil.
func GuardFrom(ctx context.Context) *Guard {
	g, _ := ctx.Value(guardCtxKey{}).(*Guard)
	return g
}

// WithCorrelationID attaches the id stored on every record produced in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// CorrelationID returns the id attached to ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationCtxKey{}).(string)
	return id
}

// NewScope starts a request scope: a fresh guard, a fresh overlay for
// pushed entity state over base, a batch scope for label lookups and the
// correlation id.
func NewScope(ctx context.Context, base entitystore.Store, correlationID string) context.Context {
	// The overlay must fall back to the real store, never to a Scoped
	// wrapper that would resolve back to the overlay itself.
	if s, ok := base.(*entitystore.Scoped); ok {
		base = s.Base()
	}
	ctx = WithGuard(ctx, NewGuard())
	ctx = entitystore.WithOverlay(ctx, entitystore.NewOverlay(base))
	ctx = format.WithBatchScope(ctx)
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
