package services

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage is the JSON envelope sent over dashboard WebSocket connections.
type WSMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type wsClient struct {
	conn     *websocket.Conn
	schoolID string
}

// WSHub manages dashboard WebSocket connections and broadcasts the
// payload-less passesUpdated signal to every connection of a school.
// Receivers re-fetch pass state when the signal arrives.
type WSHub struct {
	mu      sync.Mutex
	clients map[string]*wsClient
}

var _ Publisher = (*WSHub)(nil)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{clients: make(map[string]*wsClient)}
}

// Register registers a connection for a user, replacing any previous one.
func (h *WSHub) Register(userID, schoolID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[userID]; ok {
		existing.conn.Close()
	}
	h.clients[userID] = &wsClient{conn: conn, schoolID: schoolID}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's connection.
func (h *WSHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[userID]; ok {
		client.conn.Close()
		delete(h.clients, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// PassesUpdated broadcasts the change signal to every connection of the
// school. Connections that fail to write are dropped.
func (h *WSHub) PassesUpdated(schoolID string) {
	msg := WSMessage{Type: "passesUpdated"}

	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, client := range h.clients {
		if schoolID != "" && client.schoolID != schoolID {
			continue
		}
		if err := client.conn.WriteJSON(msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send passesUpdated")
			client.conn.Close()
			delete(h.clients, userID)
		}
	}
}
