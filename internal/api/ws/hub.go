// Package ws pushes transaction-change events to connected dashboard clients
// so open sessions refresh without polling.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one change notification sent to every connected client.
type Event struct {
	Kind      string    `json:"kind"` // transactions_changed, settings_changed
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients and broadcasts events to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool), log: log}
}

// ServeHTTP upgrades the request to a websocket and keeps it registered
// until the client disconnects. Clients only receive; inbound messages are
// drained and discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("clients", total).Msg("websocket client connected")

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends an event to every connected client, dropping clients whose
// connection has gone away.
func (h *Hub) Broadcast(kind string) {
	payload, err := json.Marshal(Event{Kind: kind, Timestamp: time.Now()})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal websocket event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")
}
