package format

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

// Resolver turns entity ids into display labels. Ids that cannot be
// resolved are simply missing from the result; that is not an error.
type Resolver interface {
	Resolve(ctx context.Context, kind string, ids []string) (map[string]string, error)
}

// StoreResolver resolves labels by reading entities from an entity store,
// using one batched read per call when the store supports it.
type StoreResolver struct {
	store entitystore.Store
}

// NewStoreResolver creates a resolver over store.
func NewStoreResolver(store entitystore.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, kind string, ids []string) (map[string]string, error) {
	labels := make(map[string]string, len(ids))

	if br, ok := r.store.(entitystore.BatchReader); ok {
		states, err := br.ReadMany(ctx, kind, ids)
		if err != nil {
			return labels, err
		}
		for id, state := range states {
			if label := entitystore.LabelOf(kind, state); label != "" {
				labels[id] = label
			}
		}
		return labels, nil
	}

	for _, id := range ids {
		state, err := r.store.Read(ctx, kind, id)
		if err != nil {
			continue
		}
		if label := entitystore.LabelOf(kind, state); label != "" {
			labels[id] = label
		}
	}
	return labels, nil
}

// keySep joins kind and id into a dataloader key.
const keySep = "\x1f"

// LoaderResolver coalesces lookups issued close together into one Resolve
// call per kind on the wrapped resolver. Loaders live in a batch scope
// attached to the context by WithBatchScope, one per request, so a batch
// never mixes lookups of different requests. Without a batch scope lookups
// go straight to the wrapped resolver. Results are not cached.
type LoaderResolver struct {
	next Resolver
	wait time.Duration
}

// NewLoaderResolver wraps next with batching loaders that wait up to wait
// for more keys before dispatching.
func NewLoaderResolver(next Resolver, wait time.Duration) *LoaderResolver {
	return &LoaderResolver{next: next, wait: wait}
}

// batchScope holds the loaders of one request.
type batchScope struct {
	mu      sync.Mutex
	loaders map[*LoaderResolver]*dataloader.Loader
}

type batchScopeCtxKey struct{}

// WithBatchScope attaches a fresh batch scope to ctx. Label lookups made
// with ctx or its children share loaders; lookups from other scopes never
// join their batches.
func WithBatchScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, batchScopeCtxKey{}, &batchScope{
		loaders: make(map[*LoaderResolver]*dataloader.Loader),
	})
}

func (r *LoaderResolver) loaderFor(ctx context.Context) *dataloader.Loader {
	scope, _ := ctx.Value(batchScopeCtxKey{}).(*batchScope)
	if scope == nil {
		return nil
	}
	scope.mu.Lock()
	defer scope.mu.Unlock()
	if l, ok := scope.loaders[r]; ok {
		return l
	}
	l := dataloader.NewBatchedLoader(r.batch,
		dataloader.WithWait(r.wait),
		dataloader.WithCache(&dataloader.NoCache{}),
	)
	scope.loaders[r] = l
	return l
}

// batch resolves one batch of keySep-joined kind/id keys, one Resolve call
// per kind.
func (r *LoaderResolver) batch(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
	byKind := make(map[string][]string)
	for _, k := range keys {
		kind, id, _ := strings.Cut(k.String(), keySep)
		byKind[kind] = append(byKind[kind], id)
	}

	labels := make(map[string]map[string]string, len(byKind))
	for kind, ids := range byKind {
		resolved, err := r.next.Resolve(ctx, kind, ids)
		if err != nil {
			resolved = map[string]string{}
		}
		labels[kind] = resolved
	}

	// Build results in the same order as keys.
	results := make([]*dataloader.Result, len(keys))
	for i, k := range keys {
		kind, id, _ := strings.Cut(k.String(), keySep)
		results[i] = &dataloader.Result{Data: labels[kind][id]}
	}
	return results
}

// Resolve implements Resolver.
func (r *LoaderResolver) Resolve(ctx context.Context, kind string, ids []string) (map[string]string, error) {
	loader := r.loaderFor(ctx)
	if loader == nil {
		return r.next.Resolve(ctx, kind, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = kind + keySep + id
	}

	thunk := loader.LoadMany(ctx, dataloader.NewKeysFromStrings(keys))
	data, _ := thunk()

	labels := make(map[string]string, len(ids))
	for i, d := range data {
		if i >= len(ids) {
			break
		}
		if s, ok := d.(string); ok && s != "" {
			labels[ids[i]] = s
		}
	}
	return labels, nil
}
