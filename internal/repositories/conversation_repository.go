package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"event-lifecycle-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts event conversation persistence.
type ConversationRepository interface {
	DeleteForEvent(ctx context.Context, eventID string) (models.ConversationDeletion, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// DeleteForEvent removes every message of the event's conversation and then the
// conversation itself. Returns ErrConversationNotFound when there is nothing left.
func (r *ConversationRepo) DeleteForEvent(ctx context.Context, eventID string) (models.ConversationDeletion, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ConversationDeletion{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conversationID string
	// concurrent runs serialize on the row lock; the loser sees no rows
	if err = tx.GetContext(ctx, &conversationID, `SELECT id FROM conversations WHERE event_id=$1 FOR UPDATE`, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConversationDeletion{}, ErrConversationNotFound
		}
		return models.ConversationDeletion{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=$1`, conversationID)
	if err != nil {
		return models.ConversationDeletion{}, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return models.ConversationDeletion{}, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID); err != nil {
		return models.ConversationDeletion{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ConversationDeletion{}, err
	}
	return models.ConversationDeletion{ConversationID: conversationID, MessagesDeleted: deleted}, nil
}
