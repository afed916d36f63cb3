package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/observability"
)

// EventFinishedName is the domain event emitted once an event was processed.
const EventFinishedName = "event.finished"

// EventPublisher publishes named domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventName string, payload any) error
}

// Auditor records audit entries.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID, eventID string, data map[string]any)
}

type eventFinishedPayload struct {
	EventID     string    `json:"event_id"`
	EventName   string    `json:"event_name"`
	Sport       string    `json:"sport"`
	OrganizerID string    `json:"organizer_id"`
	EndedAt     time.Time `json:"ended_at"`
	Recipients  []string  `json:"recipients"`
}

// DomainEventObserver republishes finished events for other services.
type DomainEventObserver struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func NewDomainEventObserver(publisher EventPublisher, logger *zap.Logger) *DomainEventObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomainEventObserver{publisher: publisher, logger: logger}
}

func (o *DomainEventObserver) EventFinished(ctx context.Context, event models.Event) {
	err := o.publisher.Publish(ctx, EventFinishedName, eventFinishedPayload{
		EventID:     event.ID,
		EventName:   event.Name,
		Sport:       event.Sport,
		OrganizerID: event.OrganizerID,
		EndedAt:     event.EndTime().UTC(),
		Recipients:  event.Recipients(),
	})
	if err != nil {
		o.logger.Warn("lifecycle: publish event.finished failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// AuditObserver writes one audit record per finished event.
type AuditObserver struct {
	auditor Auditor
}

func NewAuditObserver(auditor Auditor) *AuditObserver {
	return &AuditObserver{auditor: auditor}
}

func (o *AuditObserver) EventFinished(ctx context.Context, event models.Event) {
	o.auditor.Emit(ctx, "info", "event lifecycle finished", observability.RequestIDFromContext(ctx), event.ID, map[string]any{
		"event_name": event.Name,
		"ended_at":   event.EndTime().UTC().Format(time.RFC3339),
		"recipients": len(event.Recipients()),
	})
}
