package ports

import (
	"context"

	"github.com/feedforge/activitylog/internal/core/domain"
)

type ActivityRepository interface {
	Insert(ctx context.Context, rec domain.ActivityRecord) (domain.ActivityRecord, error)
	Get(ctx context.Context, id string) (domain.ActivityRecord, error)
	List(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityRecord, error)
	UpdateProperties(ctx context.Context, id string, props map[string]any) (domain.ActivityRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
}
