package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/observability"
)

// Publisher fans domain events out to other services.
type Publisher interface {
	Publish(ctx context.Context, eventName string, payload any) error
	Close() error
}

// RedisPublisher publishes JSON envelopes on a single Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher connects to Redis, or returns a noop publisher when url is empty
// or the server does not answer.
func NewPublisher(ctx context.Context, url, channel string, logger *zap.Logger) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		logger.Info("redis disabled, using noop", zap.String("reason", "empty redis url"))
		return noopPublisher{}
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("redis disabled, using noop", zap.Error(err))
		return noopPublisher{}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis disabled, using noop", zap.Error(err))
		_ = client.Close()
		return noopPublisher{}
	}

	logger.Info("redis connected", zap.String("channel", channel))
	return NewRedisPublisher(client, channel, logger)
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish sends one domain event.
func (p *RedisPublisher) Publish(ctx context.Context, eventName string, payload any) error {
	envelope := observability.NewEventEnvelope("domain_event", eventName, payload)
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	p.logger.Debug("domain event published", zap.String("channel", p.channel), zap.String("event_name", eventName), zap.String("id", envelope.ID))
	return nil
}

// Close releases the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

func (noopPublisher) Close() error { return nil }
