package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"event-lifecycle-service/internal/models"
)

// DeviceTokenRepository looks up and prunes push registrations.
type DeviceTokenRepository interface {
	ListForUsers(ctx context.Context, userIDs []string) ([]models.DeviceToken, error)
	Delete(ctx context.Context, userID, token string) error
}

// DeviceTokenRepo is a sqlx implementation of DeviceTokenRepository.
type DeviceTokenRepo struct {
	db *sqlx.DB
}

// NewDeviceTokenRepo constructs a DeviceTokenRepo.
func NewDeviceTokenRepo(db *sqlx.DB) *DeviceTokenRepo {
	return &DeviceTokenRepo{db: db}
}

// ListForUsers returns every token registered by the given users.
func (r *DeviceTokenRepo) ListForUsers(ctx context.Context, userIDs []string) ([]models.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []models.DeviceToken
	err := r.db.SelectContext(ctx, &tokens, `SELECT user_id, token, platform, created_at FROM device_tokens WHERE user_id = ANY($1) ORDER BY user_id, created_at`, pq.Array(userIDs))
	return tokens, err
}

// Delete removes a single token registration.
func (r *DeviceTokenRepo) Delete(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id=$1 AND token=$2`, userID, token)
	return err
}
