package ports

import (
	"context"

	"github.com/feedforge/activitylog/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event domain.ActivityEvent) error
}
