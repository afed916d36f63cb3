package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-lifecycle-service/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

var eventRowColumns = []string{"id", "name", "sport", "location_name", "start_time", "duration_minutes", "organizer_id", "organizer_name", "conversation_id"}

func TestEventRepoGetWithParticipants(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT e.id, e.name`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow("ev-1", "Sunday football", "football", "Central Park", start, 90, "u-org", "Olga", "conv-1"))
	mock.ExpectQuery(`SELECT user_id FROM event_participants`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1").AddRow("u-2"))

	event, err := repo.GetWithParticipants(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Sunday football", event.Name)
	assert.Equal(t, "Olga", event.OrganizerName)
	assert.Equal(t, []string{"u-1", "u-2"}, event.ParticipantIDs)
	require.NotNil(t, event.ConversationID)
	assert.Equal(t, "conv-1", *event.ConversationID)
	assert.Equal(t, start.Add(90*time.Minute), event.EndTime())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepoGetEventNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT e.id, e.name`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetWithParticipants(context.Background(), "missing")
	require.ErrorIs(t, err, ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepoListSchedulable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE e.duration_minutes IS NOT NULL`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow("ev-1", "a", "tennis", "", since.Add(time.Hour), 60, "u-1", "", nil).
			AddRow("ev-2", "b", "padel", "", since.Add(2*time.Hour), 30, "u-2", "", "conv-2"))

	events, err := repo.ListSchedulable(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].ConversationID)
	assert.NotNil(t, events[1].ConversationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepoDeleteForEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM conversations WHERE event_id=\$1 FOR UPDATE`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`DELETE FROM messages WHERE conversation_id=\$1`).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(`DELETE FROM conversations WHERE id=\$1`).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deletion, err := repo.DeleteForEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", deletion.ConversationID)
	assert.Equal(t, int64(12), deletion.MessagesDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepoDeleteForEventAlreadyGone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM conversations`).
		WithArgs("ev-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.DeleteForEvent(context.Background(), "ev-1")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepoDeleteForEventRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM conversations`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`DELETE FROM messages`).
		WithArgs("conv-1").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.DeleteForEvent(context.Background(), "ev-1")
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepoCreateBulk(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepo(db)

	payload := models.ReviewPayload{EventID: "ev-1", EventName: "run"}
	notifications := []models.Notification{
		{ID: "n-1", UserID: "u-1", EventID: "ev-1", Type: models.NotificationTypeReviewRequest, Text: "t", Payload: payload},
		{ID: "n-2", UserID: "u-2", EventID: "ev-1", Type: models.NotificationTypeReviewRequest, Text: "t", Payload: payload},
	}

	// u-2 already had a row, so only u-1 comes back
	mock.ExpectQuery(`INSERT INTO notifications .* ON CONFLICT \(user_id, event_id, type\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))

	created, err := repo.CreateBulk(context.Background(), notifications)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepoCreateBulkEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepo(db)

	created, err := repo.CreateBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceTokenRepo(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceTokenRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT user_id, token, platform, created_at FROM device_tokens WHERE user_id = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "token", "platform", "created_at"}).
			AddRow("u-1", "tok-a", "ios", now).
			AddRow("u-1", "tok-b", "android", now))
	mock.ExpectExec(`DELETE FROM device_tokens WHERE user_id=\$1 AND token=\$2`).
		WithArgs("u-1", "tok-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tokens, err := repo.ListForUsers(context.Background(), []string{"u-1"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.NoError(t, repo.Delete(context.Background(), "u-1", "tok-a"))
	require.NoError(t, mock.ExpectationsWereMet())
}
