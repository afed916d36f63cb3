package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"event-lifecycle-service/internal/models"
)

// NotificationRepository persists inbox notifications.
type NotificationRepository interface {
	CreateBulk(ctx context.Context, notifications []models.Notification) ([]string, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateBulk inserts all notifications in one statement. Rows that already
// exist for the same (user, event, type) are skipped; the returned slice holds
// the user ids whose row was actually created.
func (r *NotificationRepo) CreateBulk(ctx context.Context, notifications []models.Notification) ([]string, error) {
	if len(notifications) == 0 {
		return nil, nil
	}

	rows, err := r.db.NamedQueryContext(ctx, `INSERT INTO notifications (id, user_id, event_id, type, text, payload)
        VALUES (:id, :user_id, :event_id, :type, :text, :payload)
        ON CONFLICT (user_id, event_id, type) DO NOTHING
        RETURNING user_id`, notifications)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	created := make([]string, 0, len(notifications))
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		created = append(created, userID)
	}
	return created, rows.Err()
}
