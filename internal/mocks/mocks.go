package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/repositories"
)

type EventRepositoryMock struct {
	mock.Mock
}

func (m *EventRepositoryMock) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	args := m.Called(ctx, eventID)
	var event models.Event
	if val := args.Get(0); val != nil {
		event = val.(models.Event)
	}
	return event, args.Error(1)
}

func (m *EventRepositoryMock) GetWithParticipants(ctx context.Context, eventID string) (models.Event, error) {
	args := m.Called(ctx, eventID)
	var event models.Event
	if val := args.Get(0); val != nil {
		event = val.(models.Event)
	}
	return event, args.Error(1)
}

func (m *EventRepositoryMock) ListSchedulable(ctx context.Context, endAfter time.Time) ([]models.Event, error) {
	args := m.Called(ctx, endAfter)
	var events []models.Event
	if val := args.Get(0); val != nil {
		events = val.([]models.Event)
	}
	return events, args.Error(1)
}

func (m *EventRepositoryMock) ListEndedWithConversation(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	args := m.Called(ctx, from, to)
	var events []models.Event
	if val := args.Get(0); val != nil {
		events = val.([]models.Event)
	}
	return events, args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) DeleteForEvent(ctx context.Context, eventID string) (models.ConversationDeletion, error) {
	args := m.Called(ctx, eventID)
	var deletion models.ConversationDeletion
	if val := args.Get(0); val != nil {
		deletion = val.(models.ConversationDeletion)
	}
	return deletion, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateBulk(ctx context.Context, notifications []models.Notification) ([]string, error) {
	args := m.Called(ctx, notifications)
	var created []string
	if val := args.Get(0); val != nil {
		created = val.([]string)
	}
	return created, args.Error(1)
}

type DeviceTokenRepositoryMock struct {
	mock.Mock
}

func (m *DeviceTokenRepositoryMock) ListForUsers(ctx context.Context, userIDs []string) ([]models.DeviceToken, error) {
	args := m.Called(ctx, userIDs)
	var tokens []models.DeviceToken
	if val := args.Get(0); val != nil {
		tokens = val.([]models.DeviceToken)
	}
	return tokens, args.Error(1)
}

func (m *DeviceTokenRepositoryMock) Delete(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

type PushSenderMock struct {
	mock.Mock
}

func (m *PushSenderMock) Send(ctx context.Context, token models.DeviceToken, msg models.PushMessage) error {
	args := m.Called(ctx, token, msg)
	return args.Error(0)
}

type PushDispatcherMock struct {
	mock.Mock
}

func (m *PushDispatcherMock) Send(ctx context.Context, userIDs []string, msg models.PushMessage) (models.PushReport, error) {
	args := m.Called(ctx, userIDs, msg)
	var report models.PushReport
	if val := args.Get(0); val != nil {
		report = val.(models.PushReport)
	}
	return report, args.Error(1)
}

type FinishObserverMock struct {
	mock.Mock
}

func (m *FinishObserverMock) EventFinished(ctx context.Context, event models.Event) {
	m.Called(ctx, event)
}

var _ repositories.EventRepository = (*EventRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.DeviceTokenRepository = (*DeviceTokenRepositoryMock)(nil)
var _ interface {
	Send(context.Context, []string, models.PushMessage) (models.PushReport, error)
} = (*PushDispatcherMock)(nil)
