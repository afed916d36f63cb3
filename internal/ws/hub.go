package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/models"
)

const (
	EventFinishedType = "event_finished"
	writeWait         = 5 * time.Second
)

// Hub tracks websocket subscribers per event.
type Hub struct {
	rooms  map[string]map[*websocket.Conn]ConnInfo
	mu     sync.RWMutex
	logger *zap.Logger
	encode func(models.Event) ([]byte, error)
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[*websocket.Conn]ConnInfo),
		logger: logger,
		encode: jsonFinished,
	}
}

// Add registers a subscriber for eventID.
func (h *Hub) Add(eventID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[eventID]; !ok {
		h.rooms[eventID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[eventID][conn] = info
}

// Remove drops a subscriber. The room goes away with its last member.
func (h *Hub) Remove(eventID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[eventID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, eventID)
		}
	}
}

func (h *Hub) Count(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// BroadcastEventFinished tells every subscriber of the event that it ended
// and closes their connections. It returns how many were notified.
func (h *Hub) BroadcastEventFinished(event models.Event) int {
	h.mu.Lock()
	conns := h.rooms[event.ID]
	delete(h.rooms, event.ID)
	h.mu.Unlock()
	if len(conns) == 0 {
		return 0
	}

	payload, err := h.encode(event)
	if err != nil {
		h.logger.Error("websocket encode event_finished", zap.String("event_id", event.ID), zap.Error(err))
		for conn := range conns {
			closeWithError(conn)
		}
		return 0
	}
	sent := 0
	for conn, info := range conns {
		if err := writeAndClose(conn, payload); err != nil {
			h.logger.Warn("websocket write error",
				zap.String("event_id", event.ID),
				zap.String("conn_id", info.ConnID),
				zap.Duration("connected_for", time.Since(info.ConnectedAt)),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// EventFinished lets the hub observe lifecycle processing.
func (h *Hub) EventFinished(_ context.Context, event models.Event) {
	if n := h.BroadcastEventFinished(event); n > 0 {
		h.logger.Debug("websocket subscribers notified", zap.String("event_id", event.ID), zap.Int("count", n))
	}
}

func jsonFinished(event models.Event) ([]byte, error) {
	return json.Marshal(models.LifecycleEvent{
		Type:    EventFinishedType,
		EventID: event.ID,
		EndedAt: event.EndTime().UTC().Format(time.RFC3339),
	})
}

func closeWithError(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "encode failed"),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

func writeAndClose(conn *websocket.Conn, payload []byte) error {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, EventFinishedType),
		time.Now().Add(writeWait))
}
