package push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"event-lifecycle-service/internal/mocks"
	"event-lifecycle-service/internal/models"
)

func TestGatewaySendIsolatesInvalidTokens(t *testing.T) {
	tokens := new(mocks.DeviceTokenRepositoryMock)
	sender := new(mocks.PushSenderMock)
	gateway := NewGateway(tokens, sender, nil)

	users := []string{"u-1", "u-2", "u-3", "u-4", "u-5"}
	registered := []models.DeviceToken{
		{UserID: "u-1", Token: "t-1"},
		{UserID: "u-2", Token: "t-2-bad"},
		{UserID: "u-3", Token: "t-3"},
		{UserID: "u-4", Token: "t-4-bad"},
		{UserID: "u-5", Token: "t-5"},
	}
	msg := models.PushMessage{Title: "Event finished", Body: "Rate your teammates"}

	tokens.On("ListForUsers", mock.Anything, users).Return(registered, nil).Once()
	for _, tok := range registered {
		var err error
		if tok.Token == "t-2-bad" || tok.Token == "t-4-bad" {
			err = ErrInvalidToken
		}
		sender.On("Send", mock.Anything, tok, msg).Return(err).Once()
	}
	tokens.On("Delete", mock.Anything, "u-2", "t-2-bad").Return(nil).Once()
	tokens.On("Delete", mock.Anything, "u-4", "t-4-bad").Return(nil).Once()

	report, err := gateway.Send(context.Background(), users, msg)
	require.NoError(t, err)
	assert.Equal(t, models.PushReport{Recipients: 5, Sent: 3, Failed: 2, Pruned: 2}, report)
	tokens.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestGatewaySendPruneFailureIsNotFatal(t *testing.T) {
	tokens := new(mocks.DeviceTokenRepositoryMock)
	sender := new(mocks.PushSenderMock)
	gateway := NewGateway(tokens, sender, nil)
	msg := models.PushMessage{Title: "t"}
	bad := models.DeviceToken{UserID: "u-1", Token: "dead"}
	good := models.DeviceToken{UserID: "u-1", Token: "alive"}

	tokens.On("ListForUsers", mock.Anything, []string{"u-1", "u-2"}).Return([]models.DeviceToken{bad, good}, nil).Once()
	sender.On("Send", mock.Anything, bad, msg).Return(ErrInvalidToken).Once()
	sender.On("Send", mock.Anything, good, msg).Return(nil).Once()
	tokens.On("Delete", mock.Anything, "u-1", "dead").Return(assert.AnError).Once()

	report, err := gateway.Send(context.Background(), []string{"u-1", "u-2"}, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Pruned)
	tokens.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestGatewaySendTransientFailureKeepsToken(t *testing.T) {
	tokens := new(mocks.DeviceTokenRepositoryMock)
	sender := new(mocks.PushSenderMock)
	gateway := NewGateway(tokens, sender, nil)
	tok := models.DeviceToken{UserID: "u-1", Token: "t"}

	tokens.On("ListForUsers", mock.Anything, []string{"u-1"}).Return([]models.DeviceToken{tok}, nil).Once()
	sender.On("Send", mock.Anything, tok, mock.Anything).Return(assert.AnError).Once()

	report, err := gateway.Send(context.Background(), []string{"u-1"}, models.PushMessage{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	tokens.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestGatewaySendTokenLookupError(t *testing.T) {
	tokens := new(mocks.DeviceTokenRepositoryMock)
	gateway := NewGateway(tokens, new(mocks.PushSenderMock), nil)

	tokens.On("ListForUsers", mock.Anything, []string{"u-1"}).Return(nil, assert.AnError).Once()

	_, err := gateway.Send(context.Background(), []string{"u-1"}, models.PushMessage{})
	require.ErrorIs(t, err, assert.AnError)
}

func TestGatewaySendNoRecipients(t *testing.T) {
	tokens := new(mocks.DeviceTokenRepositoryMock)
	gateway := NewGateway(tokens, new(mocks.PushSenderMock), nil)

	report, err := gateway.Send(context.Background(), nil, models.PushMessage{})
	require.NoError(t, err)
	assert.Zero(t, report.Recipients)
	tokens.AssertNotCalled(t, "ListForUsers", mock.Anything, mock.Anything)
}
