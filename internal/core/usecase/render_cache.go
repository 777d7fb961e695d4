package usecase

import (
	"context"
	"time"

	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
)

const (
	defaultRenderTTL = 5 * time.Minute
	guestViewerToken = "guest"
	cacheKeyPrefix   = "render/"
)

// CachedRenderer memoizes rendered descriptions per (record, viewer) with a
// TTL and explicit invalidation on record mutation. Cache backend failures
// never surface to callers; the render is recomputed instead.
type CachedRenderer struct {
	renderer *Renderer
	cache    ports.RenderCacheStore
	ttl      time.Duration
}

// NewCachedRenderer wraps renderer with cache. A zero or negative ttl falls
// back to defaultRenderTTL (5 min).
func NewCachedRenderer(renderer *Renderer, cache ports.RenderCacheStore, ttl time.Duration) *CachedRenderer {
	if ttl <= 0 {
		ttl = defaultRenderTTL
	}
	return &CachedRenderer{renderer: renderer, cache: cache, ttl: ttl}
}

// Render returns the cached description when present and unexpired,
// otherwise renders and stores with the configured TTL.
func (s *CachedRenderer) Render(ctx context.Context, rec domain.ActivityRecord, viewer *domain.EntityKey) string {
	return s.RenderTTL(ctx, rec, viewer, s.ttl)
}

// RenderTTL is Render with an explicit TTL for this computation.
func (s *CachedRenderer) RenderTTL(ctx context.Context, rec domain.ActivityRecord, viewer *domain.EntityKey, ttl time.Duration) string {
	key := renderCacheKey(rec.ID, viewer)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached
	}

	text := s.renderer.Render(ctx, rec, viewer)
	_ = s.cache.Set(ctx, key, text, ttl)
	return text
}

// RenderUncached bypasses the cache entirely.
func (s *CachedRenderer) RenderUncached(ctx context.Context, rec domain.ActivityRecord, viewer *domain.EntityKey) string {
	return s.renderer.Render(ctx, rec, viewer)
}

// Invalidate synchronously removes every cached render of the record: the
// guest entry by exact key plus all viewer-scoped entries by prefix.
func (s *CachedRenderer) Invalidate(ctx context.Context, recordID string) error {
	if err := s.cache.Delete(ctx, renderCacheKey(recordID, nil)); err != nil {
		return err
	}
	_, err := s.cache.DeletePrefix(ctx, cacheKeyPrefix+recordID+"/")
	return err
}

// renderCacheKey is deterministic per (record, viewer); absent viewers share
// the fixed guest token.
func renderCacheKey(recordID string, viewer *domain.EntityKey) string {
	token := guestViewerToken
	if viewer != nil {
		token = viewer.Type + ":" + viewer.ID
	}
	return cacheKeyPrefix + recordID + "/" + token
}
