package ports

import (
	"context"
	"time"
)

// RenderCacheStore is a TTL'd key/value backend for rendered descriptions.
// DeletePrefix makes the backend pattern-capable so invalidation can sweep
// every viewer-scoped entry of a record, not just the guest one.
type RenderCacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	PurgeExpired(ctx context.Context) (int, error)
}
