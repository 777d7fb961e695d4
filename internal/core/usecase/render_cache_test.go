package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/feedforge/activitylog/internal/core/domain"
)

// fakeCacheStore is an in-memory RenderCacheStore without expiry, with
// optional per-method overrides.
type fakeCacheStore struct {
	values map[string]string
	sets   int
	getFn  func(key string) (string, bool, error)
	setFn  func(key, value string, ttl time.Duration) error
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{values: map[string]string{}}
}

func (f *fakeCacheStore) Get(_ context.Context, key string) (string, bool, error) {
	if f.getFn != nil {
		return f.getFn(key)
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCacheStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if f.setFn != nil {
		return f.setFn(key, value, ttl)
	}
	f.sets++
	f.values[key] = value
	return nil
}

func (f *fakeCacheStore) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeCacheStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeCacheStore) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

func TestCachedRendererMatchesDirectRender(t *testing.T) {
	cache := newFakeCacheStore()
	renderer := NewRenderer(approvalStore())
	cached := NewCachedRenderer(renderer, cache, time.Minute)
	rec := approvalRecord()

	direct := renderer.Render(context.Background(), rec, nil)
	if got := cached.Render(context.Background(), rec, nil); got != direct {
		t.Fatalf("cached render differs: %q vs %q", got, direct)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one store write, got %d", cache.sets)
	}

	// Second render is served from the cache, not recomputed.
	if got := cached.Render(context.Background(), rec, nil); got != direct {
		t.Fatalf("cache hit differs: %q", got)
	}
	if cache.sets != 1 {
		t.Fatalf("expected no second write, got %d", cache.sets)
	}
}

func TestCachedRendererKeysPerViewer(t *testing.T) {
	cache := newFakeCacheStore()
	cached := NewCachedRenderer(NewRenderer(approvalStore()), cache, time.Minute)
	rec := approvalRecord()

	guest := cached.Render(context.Background(), rec, nil)
	viewer := cached.Render(context.Background(), rec, &domain.EntityKey{Type: "user", ID: "42"})

	if guest == viewer {
		t.Fatalf("expected distinct renders, both %q", guest)
	}
	if len(cache.values) != 2 {
		t.Fatalf("expected 2 cache entries, got %d", len(cache.values))
	}
}

func TestCachedRendererInvalidateClearsAllViewers(t *testing.T) {
	cache := newFakeCacheStore()
	cached := NewCachedRenderer(NewRenderer(approvalStore()), cache, time.Minute)
	rec := approvalRecord()

	cached.Render(context.Background(), rec, nil)
	cached.Render(context.Background(), rec, &domain.EntityKey{Type: "user", ID: "42"})
	cached.Render(context.Background(), rec, &domain.EntityKey{Type: "user", ID: "99"})
	if len(cache.values) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(cache.values))
	}

	if err := cached.Invalidate(context.Background(), rec.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if len(cache.values) != 0 {
		t.Fatalf("expected empty cache, got %v", cache.values)
	}

	// After invalidation a guest render recomputes and restores the entry.
	cached.Render(context.Background(), rec, nil)
	if len(cache.values) != 1 {
		t.Fatalf("expected recompute to repopulate, got %d entries", len(cache.values))
	}
}

func TestCachedRendererBackendErrorsFallThrough(t *testing.T) {
	cache := newFakeCacheStore()
	cache.getFn = func(string) (string, bool, error) { return "", false, errors.New("backend down") }
	cache.setFn = func(string, string, time.Duration) error { return errors.New("backend down") }
	cached := NewCachedRenderer(NewRenderer(approvalStore()), cache, time.Minute)

	got := cached.Render(context.Background(), approvalRecord(), nil)
	if got != "John Doe approved Order #7 for $500" {
		t.Fatalf("expected direct render despite cache errors, got %q", got)
	}
}

func TestCachedRendererUncachedBypassesStore(t *testing.T) {
	cache := newFakeCacheStore()
	cached := NewCachedRenderer(NewRenderer(approvalStore()), cache, time.Minute)

	got := cached.RenderUncached(context.Background(), approvalRecord(), nil)
	if got != "John Doe approved Order #7 for $500" {
		t.Fatalf("unexpected render: %q", got)
	}
	if len(cache.values) != 0 || cache.sets != 0 {
		t.Fatalf("expected untouched cache, got %v", cache.values)
	}
}

func TestCachedRendererDefaultTTL(t *testing.T) {
	var seenTTL time.Duration
	cache := newFakeCacheStore()
	cache.setFn = func(_, _ string, ttl time.Duration) error {
		seenTTL = ttl
		return nil
	}
	cached := NewCachedRenderer(NewRenderer(approvalStore()), cache, 0)

	cached.Render(context.Background(), approvalRecord(), nil)
	if seenTTL != defaultRenderTTL {
		t.Fatalf("expected default ttl, got %v", seenTTL)
	}
}
