package entityloader

import (
	"context"
	"strings"

	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
	"github.com/graph-gophers/dataloader"
)

// Store decorates an EntityStore with request collapsing: concurrent
// resolves for the same (type, id) within the batch window share one lookup
// against the inner store. NoCache keeps entries from outliving the batch,
// so resolved objects are never served stale across renders.
type Store struct {
	loader *dataloader.Loader
}

func New(inner ports.EntityStore) *Store {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			entity, err := inner.Resolve(ctx, parseKey(k.String()))
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			results[i] = &dataloader.Result{Data: entity}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithCache(&dataloader.NoCache{}))
	return &Store{loader: loader}
}

func (s *Store) Resolve(ctx context.Context, key domain.EntityKey) (ports.Entity, error) {
	thunk := s.loader.Load(ctx, dataloader.StringKey(formatKey(key)))
	v, err := thunk()
	if err != nil {
		return nil, err
	}
	entity, ok := v.(ports.Entity)
	if !ok || entity == nil {
		return nil, domain.ErrNotFound
	}
	return entity, nil
}

func formatKey(key domain.EntityKey) string {
	return key.Type + "/" + key.ID
}

func parseKey(raw string) domain.EntityKey {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return domain.EntityKey{}
	}
	return domain.EntityKey{Type: parts[0], ID: parts[1]}
}
