package push

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/rabbitmq"
)

// SenderConfig selects and configures the push provider.
type SenderConfig struct {
	Provider        string
	ExpoURL         string
	ExpoAccessToken string
	RoutingKey      string
	Timeout         time.Duration
}

// NewSender returns the Sender for config.Provider: "expo" talks to the Expo
// push API, "amqp" hands deliveries to the push worker queue, anything else
// only logs.
func NewSender(config SenderConfig, publisher rabbitmq.Publisher, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch config.Provider {
	case "expo":
		return NewExpoSender(config.ExpoURL, config.ExpoAccessToken, &http.Client{Timeout: config.Timeout})
	case "amqp":
		if publisher == nil {
			logger.Warn("amqp push provider without publisher, using noop")
			return noopSender{logger: logger}
		}
		return NewQueueSender(publisher, config.RoutingKey)
	case "noop", "":
		return noopSender{logger: logger}
	default:
		logger.Warn("unknown push provider, using noop", zap.String("provider", config.Provider))
		return noopSender{logger: logger}
	}
}

// QueueSender publishes one delivery job per device to the push worker.
type QueueSender struct {
	publisher  rabbitmq.Publisher
	routingKey string
}

// NewQueueSender builds a QueueSender.
func NewQueueSender(publisher rabbitmq.Publisher, routingKey string) *QueueSender {
	return &QueueSender{publisher: publisher, routingKey: routingKey}
}

type deliveryJob struct {
	UserID   string             `json:"user_id"`
	Token    string             `json:"token"`
	Platform string             `json:"platform"`
	Message  models.PushMessage `json:"message"`
}

// Send enqueues the delivery. Token validity is the worker's concern.
func (s *QueueSender) Send(ctx context.Context, token models.DeviceToken, msg models.PushMessage) error {
	return s.publisher.Publish(ctx, s.routingKey, deliveryJob{
		UserID:   token.UserID,
		Token:    token.Token,
		Platform: token.Platform,
		Message:  msg,
	})
}

type noopSender struct {
	logger *zap.Logger
}

func (s noopSender) Send(_ context.Context, token models.DeviceToken, msg models.PushMessage) error {
	s.logger.Debug("push noop send", zap.String("user_id", token.UserID), zap.String("title", msg.Title))
	return nil
}
