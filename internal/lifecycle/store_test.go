package lifecycle

import (
	"context"
	"sync"
	"time"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/repositories"
)

// memoryStore is a goroutine-safe in-memory stand-in for the event,
// conversation and notification tables, including the notification
// uniqueness key.
type memoryStore struct {
	mu            sync.Mutex
	events        map[string]models.Event
	messages      map[string]int64
	notifications map[string]models.Notification
	deletions     int
	loadErrors    map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:        make(map[string]models.Event),
		messages:      make(map[string]int64),
		notifications: make(map[string]models.Notification),
		loadErrors:    make(map[string]error),
	}
}

func (s *memoryStore) addEvent(event models.Event, messages int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if messages >= 0 {
		conv := "conv-" + event.ID
		event.ConversationID = &conv
		s.messages[event.ID] = messages
	}
	s.events[event.ID] = event
}

func (s *memoryStore) hasConversation(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[eventID]
	return ok
}

func (s *memoryStore) notificationsFor(eventID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.EventID == eventID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memoryStore) deletionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletions
}

func (s *memoryStore) GetEvent(_ context.Context, eventID string) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErrors[eventID]; err != nil {
		return models.Event{}, err
	}
	event, ok := s.events[eventID]
	if !ok {
		return models.Event{}, repositories.ErrEventNotFound
	}
	if _, ok := s.messages[eventID]; !ok {
		event.ConversationID = nil
	}
	return event, nil
}

func (s *memoryStore) GetWithParticipants(ctx context.Context, eventID string) (models.Event, error) {
	return s.GetEvent(ctx, eventID)
}

func (s *memoryStore) ListSchedulable(_ context.Context, endAfter time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, event := range s.events {
		if event.EndTime().After(endAfter) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *memoryStore) ListEndedWithConversation(_ context.Context, from, to time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for id, event := range s.events {
		if _, ok := s.messages[id]; !ok || !event.HasValidDuration() {
			continue
		}
		end := event.EndTime()
		if !end.Before(from) && !end.After(to) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *memoryStore) DeleteForEvent(_ context.Context, eventID string) (models.ConversationDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.messages[eventID]
	if !ok {
		return models.ConversationDeletion{}, repositories.ErrConversationNotFound
	}
	delete(s.messages, eventID)
	s.deletions++
	return models.ConversationDeletion{ConversationID: "conv-" + eventID, MessagesDeleted: count}, nil
}

func (s *memoryStore) CreateBulk(_ context.Context, notifications []models.Notification) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []string
	for _, n := range notifications {
		key := n.UserID + "|" + n.EventID + "|" + n.Type
		if _, exists := s.notifications[key]; exists {
			continue
		}
		s.notifications[key] = n
		created = append(created, n.UserID)
	}
	return created, nil
}

var (
	_ repositories.EventRepository        = (*memoryStore)(nil)
	_ repositories.ConversationRepository = (*memoryStore)(nil)
	_ repositories.NotificationRepository = (*memoryStore)(nil)
)

type runnerCall struct {
	eventID string
	at      time.Time
}

// recordingRunner records Process invocations instead of doing work.
type recordingRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	fail  map[string]error
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fail: make(map[string]error)}
}

func (r *recordingRunner) Process(_ context.Context, eventID string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runnerCall{eventID: eventID, at: time.Now()})
	if err := r.fail[eventID]; err != nil {
		return Result{EventID: eventID}, err
	}
	return Result{EventID: eventID, Found: true}, nil
}

func (r *recordingRunner) callsFor(eventID string) []runnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []runnerCall
	for _, c := range r.calls {
		if c.eventID == eventID {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingRunner) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func sampleEvent(id string, end time.Time) models.Event {
	return models.Event{
		ID:              id,
		Name:            "Sunday five-a-side " + id,
		Sport:           "football",
		LocationName:    "Riverside pitch",
		StartTime:       end.Add(-90 * time.Minute),
		DurationMinutes: 90,
		OrganizerID:     "org-" + id,
		OrganizerName:   "Dana",
		ParticipantIDs:  []string{"p1-" + id, "p2-" + id, "p3-" + id},
	}
}
