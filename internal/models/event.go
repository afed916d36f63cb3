package models

import "time"

// MaxDurationMinutes caps how long a single event may run (one week).
const MaxDurationMinutes = 7 * 24 * 60

// Event is a scheduled sporting meetup as seen by the lifecycle scheduler.
type Event struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Sport           string    `db:"sport" json:"sport"`
	LocationName    string    `db:"location_name" json:"location_name"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	OrganizerID     string    `db:"organizer_id" json:"organizer_id"`
	OrganizerName   string    `db:"organizer_name" json:"organizer_name"`
	ConversationID  *string   `db:"conversation_id" json:"conversation_id,omitempty"`
	ParticipantIDs  []string  `db:"-" json:"participant_ids"`
}

// EndTime returns start time plus duration.
func (e Event) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// HasValidDuration reports whether the event can be scheduled at all.
// Durations above MaxDurationMinutes are rejected so EndTime cannot overflow.
func (e Event) HasValidDuration() bool {
	return e.DurationMinutes > 0 && e.DurationMinutes <= MaxDurationMinutes
}

// Recipients returns participants plus the organizer, without duplicates,
// in first-seen order.
func (e Event) Recipients() []string {
	seen := make(map[string]struct{}, len(e.ParticipantIDs)+1)
	out := make([]string, 0, len(e.ParticipantIDs)+1)
	for _, id := range append(append([]string{}, e.ParticipantIDs...), e.OrganizerID) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
