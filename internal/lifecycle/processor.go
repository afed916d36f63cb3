package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/observability"
	"event-lifecycle-service/internal/repositories"
)

const tracerName = "event-lifecycle-service/internal/lifecycle"

// PushDispatcher delivers one push message to a set of users.
type PushDispatcher interface {
	Send(ctx context.Context, userIDs []string, msg models.PushMessage) (models.PushReport, error)
}

// FinishObserver is told about an event after its lifecycle processing
// persisted something. Observers must not block for long and cannot fail
// the run.
type FinishObserver interface {
	EventFinished(ctx context.Context, event models.Event)
}

// Runner is anything that can run lifecycle processing for one event.
type Runner interface {
	Process(ctx context.Context, eventID string) (Result, error)
}

// Result describes one Process run.
type Result struct {
	EventID              string            `json:"eventId"`
	EventName            string            `json:"eventName"`
	EndTime              time.Time         `json:"endTime"`
	MessagesDeleted      int64             `json:"messagesDeleted"`
	NotificationsCreated int               `json:"notificationsCreated"`
	Found                bool              `json:"-"`
	ConversationDeleted  bool              `json:"-"`
	Push                 models.PushReport `json:"-"`
}

// Processor tears down an ended event's chat and fans out review requests.
// Every step tolerates a concurrent or repeated run for the same event.
type Processor struct {
	events        repositories.EventRepository
	conversations repositories.ConversationRepository
	notifications repositories.NotificationRepository
	push          PushDispatcher
	pushTimeout   time.Duration
	observers     []FinishObserver
	logger        *zap.Logger
	now           func() time.Time
}

func NewProcessor(
	events repositories.EventRepository,
	conversations repositories.ConversationRepository,
	notifications repositories.NotificationRepository,
	push PushDispatcher,
	pushTimeout time.Duration,
	logger *zap.Logger,
	observers ...FinishObserver,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		events:        events,
		conversations: conversations,
		notifications: notifications,
		push:          push,
		pushTimeout:   pushTimeout,
		observers:     observers,
		logger:        logger,
		now:           time.Now,
	}
}

// Process runs the end-of-event transition. A missing event or conversation
// is a successful no-op. Store failures are returned; push failures never are.
func (p *Processor) Process(ctx context.Context, eventID string) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "lifecycle.process",
		trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	start := time.Now()
	result, err := p.process(ctx, eventID)

	outcome := "processed"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !result.Found:
		outcome = "not_found"
	}
	observability.ObserveProcess(outcome, time.Since(start))
	span.SetAttributes(
		attribute.Int64("lifecycle.messages_deleted", result.MessagesDeleted),
		attribute.Int("lifecycle.notifications_created", result.NotificationsCreated),
	)
	return result, err
}

func (p *Processor) process(ctx context.Context, eventID string) (Result, error) {
	result := Result{EventID: eventID}

	event, err := p.events.GetWithParticipants(ctx, eventID)
	if errors.Is(err, repositories.ErrEventNotFound) {
		p.logger.Info("lifecycle: event gone, nothing to do", zap.String("event_id", eventID))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("load event %s: %w", eventID, err)
	}
	result.Found = true
	result.EventName = event.Name
	result.EndTime = event.EndTime()

	deletion, err := p.conversations.DeleteForEvent(ctx, eventID)
	switch {
	case errors.Is(err, repositories.ErrConversationNotFound):
		p.logger.Debug("lifecycle: conversation already removed", zap.String("event_id", eventID))
	case err != nil:
		return result, fmt.Errorf("delete conversation for %s: %w", eventID, err)
	default:
		result.ConversationDeleted = true
		result.MessagesDeleted = deletion.MessagesDeleted
	}

	created, err := p.notifications.CreateBulk(ctx, p.reviewRequests(event))
	if err != nil {
		return result, fmt.Errorf("create notifications for %s: %w", eventID, err)
	}
	result.NotificationsCreated = len(created)
	observability.AddNotificationsCreated(len(created))

	if len(created) > 0 && p.push != nil {
		result.Push = p.dispatch(ctx, event, created)
	}

	if result.ConversationDeleted || result.NotificationsCreated > 0 {
		for _, observer := range p.observers {
			observer.EventFinished(ctx, event)
		}
	}

	p.logger.Info("lifecycle: event processed",
		zap.String("event_id", eventID),
		zap.Bool("conversation_deleted", result.ConversationDeleted),
		zap.Int64("messages_deleted", result.MessagesDeleted),
		zap.Int("notifications_created", result.NotificationsCreated),
		zap.Int("push_sent", result.Push.Sent),
		zap.Int("push_failed", result.Push.Failed))
	return result, nil
}

func (p *Processor) reviewRequests(event models.Event) []models.Notification {
	recipients := event.Recipients()
	payload := models.NewReviewPayload(event)
	now := p.now().UTC()
	text := fmt.Sprintf("Event '%s' has finished. Please rate the other participants.", event.Name)

	out := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		out = append(out, models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			EventID:   event.ID,
			Type:      models.NotificationTypeReviewRequest,
			Text:      text,
			Payload:   payload,
			CreatedAt: now,
		})
	}
	return out
}

func (p *Processor) dispatch(ctx context.Context, event models.Event, userIDs []string) models.PushReport {
	if p.pushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pushTimeout)
		defer cancel()
	}

	report, err := p.push.Send(ctx, userIDs, models.PushMessage{
		Title: "How was " + event.Name + "?",
		Body:  "The event has finished. Tap to rate the other participants.",
		Data: map[string]string{
			"type":    models.NotificationTypeReviewRequest,
			"eventId": event.ID,
		},
	})
	if err != nil {
		p.logger.Warn("lifecycle: push dispatch failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
	return report
}
