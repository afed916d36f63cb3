package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"event-lifecycle-service/internal/mocks"
	"event-lifecycle-service/internal/models"
)

func TestExpoSenderSuccess(t *testing.T) {
	var got expoMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"data":{"status":"ok","id":"ticket-1"}}`))
	}))
	defer server.Close()

	sender := NewExpoSender(server.URL, "secret", server.Client())
	err := sender.Send(context.Background(), models.DeviceToken{Token: "ExponentPushToken[abc]"}, models.PushMessage{
		Title: "Game over",
		Body:  "Rate the players",
		Data:  map[string]string{"eventId": "ev-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[abc]", got.To)
	assert.Equal(t, "ev-1", got.Data["eventId"])
}

func TestExpoSenderDeviceNotRegistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}}`))
	}))
	defer server.Close()

	err := NewExpoSender(server.URL, "", nil).Send(context.Background(), models.DeviceToken{Token: "x"}, models.PushMessage{})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpoSenderOtherTicketError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"status":"error","message":"too big","details":{"error":"MessageTooBig"}}}`))
	}))
	defer server.Close()

	err := NewExpoSender(server.URL, "", nil).Send(context.Background(), models.DeviceToken{Token: "x"}, models.PushMessage{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestExpoSenderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewExpoSender(server.URL, "", nil).Send(context.Background(), models.DeviceToken{Token: "x"}, models.PushMessage{})
	require.Error(t, err)
}

func TestQueueSenderPublishesJob(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	sender := NewQueueSender(publisher, "push.deliver")
	tok := models.DeviceToken{UserID: "u-1", Token: "t", Platform: "ios"}
	msg := models.PushMessage{Title: "hi"}

	publisher.On("Publish", mock.Anything, "push.deliver", deliveryJob{UserID: "u-1", Token: "t", Platform: "ios", Message: msg}).Return(nil).Once()

	require.NoError(t, sender.Send(context.Background(), tok, msg))
	publisher.AssertExpectations(t)
}

func TestNewSenderProviders(t *testing.T) {
	assert.IsType(t, &ExpoSender{}, NewSender(SenderConfig{Provider: "expo"}, nil, nil))
	assert.IsType(t, &QueueSender{}, NewSender(SenderConfig{Provider: "amqp"}, new(mocks.PublisherMock), nil))
	assert.IsType(t, noopSender{}, NewSender(SenderConfig{Provider: "amqp"}, nil, nil))
	assert.IsType(t, noopSender{}, NewSender(SenderConfig{Provider: "carrier-pigeon"}, nil, nil))
}
