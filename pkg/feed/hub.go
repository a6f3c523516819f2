// Package feed pushes intake events to dashboard clients over websockets.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
	"github.com/triagex/platform/pkg/observability/metrics"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub fans events out to connected clients. Run owns the client set.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// Client is one websocket connection with optional filters; zero means
// unfiltered.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	patientID int64
	siteID    int64
}

type message struct {
	payload   []byte
	patientID int64
	siteID    int64
}

// NewHub accepts upgrades from allowedOrigin, or from anywhere when it is
// "*" or empty.
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, sendBuffer),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				metrics.FeedClientDisconnected()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.FeedClientConnected()
			logger.Log.WithFields(map[string]interface{}{
				"patient_id": client.patientID,
				"site_id":    client.siteID,
			}).Debug("Feed client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer; drop it rather than block the feed.
					delete(h.clients, client)
					close(client.send)
					metrics.FeedClientDisconnected()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.FeedClientDisconnected()
	}
}

// Clients reports the number of registered connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) wants(msg message) bool {
	if c.patientID != 0 && c.patientID != msg.patientID {
		return false
	}
	if c.siteID != 0 && c.siteID != msg.siteID {
		return false
	}
	return true
}

// Broadcast queues an event for delivery. It never blocks; a full queue
// drops the event.
func (h *Hub) Broadcast(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to marshal feed event")
		return
	}
	msg := message{
		payload:   payload,
		patientID: idField(event.Data, "patient_id"),
		siteID:    idField(event.Data, "site_id"),
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Log.WithField("event_type", event.Type).Warn("Feed broadcast queue full, dropping event")
	}
}

// HandleEvent adapts Broadcast to the kafka consumer's handler signature.
func (h *Hub) HandleEvent(_ context.Context, event models.Event) error {
	h.Broadcast(event)
	return nil
}

// PublishEvent lets the hub stand in for the kafka producer when no topic
// is configured, so intake events still reach connected dashboards.
func (h *Hub) PublishEvent(_ context.Context, eventType, _ string, data map[string]interface{}) error {
	h.Broadcast(models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "triagex-intake",
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// ServeHTTP upgrades GET /ws/feed. Filters come from ?patient_id= and
// ?site_id=.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	patientID, err := queryID(r, "patient_id")
	if err != nil {
		http.Error(w, "invalid patient_id", http.StatusBadRequest)
		return
	}
	siteID, err := queryID(r, "site_id")
	if err != nil {
		http.Error(w, "invalid site_id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to upgrade feed connection")
		return
	}
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		patientID: patientID,
		siteID:    siteID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only drains control frames; clients do not send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).Warn("Feed connection closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Log.WithError(err).Debug("Failed to write feed message")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// idField reads an id from event data decoded from JSON or built in
// process.
func idField(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}
