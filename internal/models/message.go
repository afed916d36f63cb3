package models

// LifecycleEvent is broadcast to websocket subscribers of an event.
type LifecycleEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	EndedAt string `json:"ended_at,omitempty"`
}
