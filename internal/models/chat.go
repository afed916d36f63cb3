package models

// ConversationDeletion reports what a conversation teardown removed.
type ConversationDeletion struct {
	ConversationID  string
	MessagesDeleted int64
}
