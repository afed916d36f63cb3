package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/observability"
	"event-lifecycle-service/internal/repositories"
)

// EventWebSocketHandler lets clients wait for an event to finish.
type EventWebSocketHandler struct {
	hub    *Hub
	events repositories.EventRepository
	logger *zap.Logger
}

// NewEventWebSocketHandler constructs an EventWebSocketHandler.
func NewEventWebSocketHandler(hub *Hub, events repositories.EventRepository, logger *zap.Logger) *EventWebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventWebSocketHandler{hub: hub, events: events, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and subscribes it to the event.
func (h *EventWebSocketHandler) Handle(c *gin.Context) {
	eventID := c.Param("event_id")

	ctx, span := otel.Tracer("event-lifecycle-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	event, err := h.events.GetEvent(ctx, eventID)
	if errors.Is(err, repositories.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      observability.UserIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	// Already processed: nothing left to wait for.
	if event.ConversationID == nil && !event.EndTime().After(time.Now()) {
		payload, err := h.hub.encode(event)
		if err != nil {
			h.logger.Error("websocket encode event_finished", zap.String("event_id", eventID), zap.Error(err))
			closeWithError(conn)
			return
		}
		_ = writeAndClose(conn, payload)
		return
	}

	h.hub.Add(eventID, conn, info)
	observability.IncWSActive()
	h.logger.Debug("websocket connected", zap.String("event_id", eventID), zap.String("conn_id", info.ConnID))

	go func() {
		defer func() {
			h.hub.Remove(eventID, conn)
			observability.DecWSActive()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("websocket closed",
						zap.String("event_id", eventID),
						zap.String("conn_id", info.ConnID),
						zap.Duration("connected_for", time.Since(info.ConnectedAt)),
						zap.Error(err))
				}
				return
			}
		}
	}()
}
