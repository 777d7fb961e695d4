package sqlite

import (
	"context"
	"testing"
	"time"
)

func TestRenderCacheStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewRenderCacheStore(openTestDB(t))

	if err := store.Set(ctx, "render/rec-1/guest", "John approved Order #7", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := store.Get(ctx, "render/rec-1/guest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "John approved Order #7" {
		t.Fatalf("got (%q, %v)", value, ok)
	}

	if _, ok, err := store.Get(ctx, "render/rec-1/user:42"); err != nil || ok {
		t.Fatalf("expected miss for absent key, got ok=%v err=%v", ok, err)
	}
}

func TestRenderCacheStoreSetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewRenderCacheStore(openTestDB(t))

	if err := store.Set(ctx, "render/rec-1/guest", "first", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "render/rec-1/guest", "second", time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, ok, err := store.Get(ctx, "render/rec-1/guest")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if value != "second" {
		t.Fatalf("value = %q, want second", value)
	}
}

func TestRenderCacheStoreExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	store := NewRenderCacheStore(openTestDB(t))

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	if err := store.Set(ctx, "render/rec-1/guest", "text", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok, err := store.Get(ctx, "render/rec-1/guest"); err != nil || ok {
		t.Fatalf("expected expired miss, got ok=%v err=%v", ok, err)
	}

	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
}

func TestRenderCacheStoreDeletePrefix(t *testing.T) {
	ctx := context.Background()
	store := NewRenderCacheStore(openTestDB(t))

	entries := map[string]string{
		"render/rec-1/guest":   "a",
		"render/rec-1/user:42": "b",
		"render/rec-1/user:7":  "c",
		"render/rec-10/guest":  "d",
		"render/rec-2/user:42": "e",
	}
	for key, value := range entries {
		if err := store.Set(ctx, key, value, time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	deleted, err := store.DeletePrefix(ctx, "render/rec-1/")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	// rec-10 keys share the rec-1 string prefix but not the delimited one.
	if _, ok, _ := store.Get(ctx, "render/rec-10/guest"); !ok {
		t.Error("sibling record entry removed by prefix delete")
	}
	if _, ok, _ := store.Get(ctx, "render/rec-2/user:42"); !ok {
		t.Error("unrelated record entry removed by prefix delete")
	}
}

func TestRenderCacheStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRenderCacheStore(openTestDB(t))

	if err := store.Set(ctx, "render/rec-1/guest", "text", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Delete(ctx, "render/rec-1/guest"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "render/rec-1/guest"); ok {
		t.Fatal("entry survived delete")
	}
	if err := store.Delete(ctx, "render/rec-1/guest"); err != nil {
		t.Fatalf("delete of absent key should be a no-op, got %v", err)
	}
}
