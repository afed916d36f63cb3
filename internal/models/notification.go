package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// NotificationTypeReviewRequest tags the "event finished, please review" inbox row.
const NotificationTypeReviewRequest = "event_review_request"

// Notification is a per-user inbox row.
type Notification struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	EventID   string        `db:"event_id" json:"event_id"`
	Type      string        `db:"type" json:"type"`
	Text      string        `db:"text" json:"text"`
	Payload   ReviewPayload `db:"payload" json:"payload"`
	ReadAt    *time.Time    `db:"read_at" json:"read_at"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// ReviewPayload is the structured body of a review request notification.
type ReviewPayload struct {
	EventID       string `json:"eventId"`
	EventName     string `json:"eventName"`
	Sport         string `json:"sport"`
	LocationName  string `json:"locationName"`
	OrganizerID   string `json:"organizerId"`
	OrganizerName string `json:"organizerName"`
}

// Value stores the payload as JSONB.
func (p ReviewPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan reads a JSONB payload.
func (p *ReviewPayload) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = ReviewPayload{}
		return nil
	default:
		return errors.New("unsupported payload type")
	}
}

// NewReviewPayload builds the payload for an event.
func NewReviewPayload(e Event) ReviewPayload {
	return ReviewPayload{
		EventID:       e.ID,
		EventName:     e.Name,
		Sport:         e.Sport,
		LocationName:  e.LocationName,
		OrganizerID:   e.OrganizerID,
		OrganizerName: e.OrganizerName,
	}
}
