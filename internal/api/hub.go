package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/events"
	"github.com/nshruti113/adaptive-ddos-defense/internal/metrics"
	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

const writeWait = 5 * time.Second

// Message is the envelope pushed to dashboard clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks websocket clients and broadcasts messages to all of them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	clients map[*websocket.Conn]string
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.Named("ws-hub"),
		metrics: m,
		clients: make(map[*websocket.Conn]string),
	}
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects. Inbound messages are ignored.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	h.add(conn, id)
	defer h.remove(conn)

	h.logger.Info("websocket client connected", zap.String("client_id", id))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("websocket client gone", zap.String("client_id", id), zap.Error(err))
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = id
	h.gauge()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.gauge()
	}
}

// gauge must be called with mu held.
func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends one message to every client, dropping clients whose write
// fails.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("encode websocket message", zap.String("type", msgType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, id := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("websocket write failed", zap.String("client_id", id), zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
	h.gauge()
}

// NotifyAttackEvent pushes opened and closed events to dashboards as alerts.
func (h *Hub) NotifyAttackEvent(_ context.Context, outcome events.Outcome, ev models.AttackEvent) error {
	h.Broadcast("alert", events.NewAlert(outcome, ev, time.Now()))
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]string)
	h.gauge()
}
