package events

import (
	"context"
	"log"

	"github.com/feedforge/activitylog/internal/core/domain"
)

type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.ActivityEvent) error {
	log.Printf("activity publish topic=%s event_id=%s event_type=%s record=%s action=%s", topic, event.EventID, event.EventType, event.RecordID, event.Action)
	return nil
}
