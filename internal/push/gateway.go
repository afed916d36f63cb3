package push

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/observability"
	"event-lifecycle-service/internal/repositories"
)

// ErrInvalidToken is returned by a Sender when the provider rejected the
// device token permanently.
var ErrInvalidToken = errors.New("invalid device token")

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, token models.DeviceToken, msg models.PushMessage) error
}

// Gateway is the best-effort push channel used by lifecycle processing.
type Gateway struct {
	tokens repositories.DeviceTokenRepository
	sender Sender
	logger *zap.Logger
}

// NewGateway builds a Gateway.
func NewGateway(tokens repositories.DeviceTokenRepository, sender Sender, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{tokens: tokens, sender: sender, logger: logger}
}

// Send pushes msg to every registered device of userIDs. Per-device failures
// are isolated; invalid tokens are pruned. Only a failed token lookup is
// returned as an error.
func (g *Gateway) Send(ctx context.Context, userIDs []string, msg models.PushMessage) (models.PushReport, error) {
	report := models.PushReport{Recipients: len(userIDs)}
	if len(userIDs) == 0 {
		return report, nil
	}

	tokens, err := g.tokens.ListForUsers(ctx, userIDs)
	if err != nil {
		return report, fmt.Errorf("load device tokens: %w", err)
	}

	byUser := make(map[string][]models.DeviceToken, len(userIDs))
	for _, tok := range tokens {
		byUser[tok.UserID] = append(byUser[tok.UserID], tok)
	}

	for _, userID := range userIDs {
		devices := byUser[userID]
		if len(devices) == 0 {
			report.Skipped++
			continue
		}

		delivered := false
		for _, device := range devices {
			err := g.sender.Send(ctx, device, msg)
			if err == nil {
				delivered = true
				continue
			}

			g.logger.Warn("push delivery failed",
				zap.String("user_id", userID),
				zap.String("platform", device.Platform),
				zap.Error(err))
			if errors.Is(err, ErrInvalidToken) {
				if err := g.tokens.Delete(ctx, device.UserID, device.Token); err != nil {
					g.logger.Warn("prune device token failed", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				report.Pruned++
			}
		}

		if delivered {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	observability.AddPushDeliveries("sent", report.Sent)
	observability.AddPushDeliveries("failed", report.Failed)
	observability.AddPushDeliveries("skipped", report.Skipped)
	return report, nil
}
