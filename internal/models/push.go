package models

import "time"

// DeviceToken is a push registration for one user device.
type DeviceToken struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"token"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PushMessage is the payload handed to the push gateway.
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushReport summarizes a gateway call. Sent and Failed count recipients: a
// recipient is sent when at least one of their devices accepted the message.
type PushReport struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Pruned     int `json:"pruned"`
}
