package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/ports"
	"github.com/google/uuid"
)

// ActivityService persists activity records and keeps the render cache
// coherent: property updates and deletions invalidate cached renders
// synchronously before returning. Lifecycle events are published best
// effort; a failed publish never fails the mutation.
type ActivityService struct {
	repo      ports.ActivityRepository
	renders   *CachedRenderer
	publisher ports.EventPublisher
	now       func() time.Time
}

func NewActivityService(repo ports.ActivityRepository, renders *CachedRenderer, publisher ports.EventPublisher) *ActivityService {
	return &ActivityService{repo: repo, renders: renders, publisher: publisher, now: time.Now}
}

// Log persists a finalized record, assigning an ID and defaulting the
// occurrence time when unset.
func (s *ActivityService) Log(ctx context.Context, rec domain.ActivityRecord) (domain.ActivityRecord, error) {
	if err := rec.Validate(); err != nil {
		return domain.ActivityRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = s.now().UTC()
	}

	stored, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return domain.ActivityRecord{}, err
	}

	_ = s.publisher.Publish(ctx, "activity.logged", s.event("activity.logged", stored))
	return stored, nil
}

func (s *ActivityService) Get(ctx context.Context, id string) (domain.ActivityRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *ActivityService) List(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.List(ctx, filter)
}

// Describe renders the record's description for viewer through the cache.
func (s *ActivityService) Describe(ctx context.Context, id string, viewer *domain.EntityKey) (string, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.renders.Render(ctx, rec, viewer), nil
}

// DescribeFresh renders bypassing the cache.
func (s *ActivityService) DescribeFresh(ctx context.Context, id string, viewer *domain.EntityKey) (string, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.renders.RenderUncached(ctx, rec, viewer), nil
}

// UpdateProperties merges props into the record's properties and invalidates
// its cached renders before returning.
func (s *ActivityService) UpdateProperties(ctx context.Context, id string, props map[string]any) (domain.ActivityRecord, error) {
	updated, err := s.repo.UpdateProperties(ctx, id, props)
	if err != nil {
		return domain.ActivityRecord{}, err
	}
	if err := s.renders.Invalidate(ctx, id); err != nil {
		return domain.ActivityRecord{}, err
	}

	_ = s.publisher.Publish(ctx, "activity.updated", s.event("activity.updated", updated))
	return updated, nil
}

// Delete removes the record (entity refs cascade with it) and invalidates
// its cached renders before returning.
func (s *ActivityService) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if err := s.renders.Invalidate(ctx, id); err != nil {
		return true, err
	}

	_ = s.publisher.Publish(ctx, "activity.deleted", s.event("activity.deleted", rec))
	return true, nil
}

func (s *ActivityService) event(eventType string, rec domain.ActivityRecord) domain.ActivityEvent {
	payload, _ := json.Marshal(map[string]any{
		"template":   rec.Template,
		"properties": rec.Properties,
	})
	return domain.ActivityEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		RecordID:   rec.ID,
		Action:     rec.Action,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	}
}
