package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"event-lifecycle-service/internal/models"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository abstracts read access to events for the lifecycle scheduler.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	GetWithParticipants(ctx context.Context, eventID string) (models.Event, error)
	ListSchedulable(ctx context.Context, endAfter time.Time) ([]models.Event, error)
	ListEndedWithConversation(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

// EventRepo is a sqlx implementation of EventRepository.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

const eventColumns = `e.id, e.name, e.sport, e.location_name, e.start_time,
        COALESCE(e.duration_minutes, 0) AS duration_minutes, e.organizer_id,
        COALESCE(u.name, '') AS organizer_name, c.id AS conversation_id`

const eventEndExpr = `e.start_time + e.duration_minutes * INTERVAL '1 minute'`

// GetEvent loads an event with its organizer name and conversation id.
func (r *EventRepo) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	var event models.Event
	query := `SELECT ` + eventColumns + ` FROM events e
        LEFT JOIN users u ON u.id = e.organizer_id
        LEFT JOIN conversations c ON c.event_id = e.id
        WHERE e.id=$1`
	err := r.db.GetContext(ctx, &event, query, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrEventNotFound
	}
	return event, err
}

// GetWithParticipants loads an event together with its participant ids.
func (r *EventRepo) GetWithParticipants(ctx context.Context, eventID string) (models.Event, error) {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}

	var participants []string
	if err := r.db.SelectContext(ctx, &participants, `SELECT user_id FROM event_participants WHERE event_id=$1 ORDER BY joined_at ASC, user_id ASC`, eventID); err != nil {
		return models.Event{}, err
	}
	event.ParticipantIDs = participants
	return event, nil
}

// ListSchedulable returns events with a known duration ending after endAfter.
func (r *EventRepo) ListSchedulable(ctx context.Context, endAfter time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e
        LEFT JOIN users u ON u.id = e.organizer_id
        LEFT JOIN conversations c ON c.event_id = e.id
        WHERE e.duration_minutes IS NOT NULL AND ` + eventEndExpr + ` > $1
        ORDER BY e.start_time ASC`
	var events []models.Event
	err := r.db.SelectContext(ctx, &events, query, endAfter)
	return events, err
}

// ListEndedWithConversation returns events that ended within [from, to] and
// still own a conversation.
func (r *EventRepo) ListEndedWithConversation(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e
        LEFT JOIN users u ON u.id = e.organizer_id
        INNER JOIN conversations c ON c.event_id = e.id
        WHERE e.duration_minutes > 0 AND ` + eventEndExpr + ` BETWEEN $1 AND $2
        ORDER BY e.start_time ASC`
	var events []models.Event
	err := r.db.SelectContext(ctx, &events, query, from, to)
	return events, err
}
