package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"match-chat-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WebSocket message types
const (
	WSOpenConversation  = "open_conversation"
	WSCloseConversation = "close_conversation"
	WSSendMessage       = "send_message"

	WSHistory      = "history"
	WSMessageEvent = "message"
	WSNotification = "notification"
	WSMatchCreated = "match_created"
	WSError        = "error"
)

// WSMessage represents a WebSocket message in either direction
type WSMessage struct {
	Type     string           `json:"type"`
	PeerID   string           `json:"peer_id,omitempty"`
	Text     string           `json:"text,omitempty"`
	Message  string           `json:"message,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
	Data     interface{}      `json:"data,omitempty"`
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user, replacing any
// previous one
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}
	h.connections[userID] = &wsClient{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the user's current connection
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.connections[userID]; exists && client.conn == conn {
		client.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// NotifyMatchCreated tells an online user about a new mutual match
func (h *WSHub) NotifyMatchCreated(userID string, match *models.User, matchedAt int64) {
	if !h.IsOnline(userID) {
		return
	}
	message := WSMessage{
		Type:   WSMatchCreated,
		PeerID: match.ID,
		Data: map[string]interface{}{
			"user_id":    match.ID,
			"name":       match.Name,
			"matched_at": matchedAt,
		},
	}
	if err := h.SendToUser(userID, message); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to notify match creation")
	}
}

// WSChatSink forwards a chat session's output to a user's connection
type WSChatSink struct {
	Hub    *WSHub
	UserID string
	PeerID string
}

func (s WSChatSink) Message(msg models.Message) {
	if err := s.Hub.SendToUser(s.UserID, WSMessage{Type: WSMessageEvent, PeerID: s.PeerID, Data: msg}); err != nil {
		log.Debug().Err(err).Str("user_id", s.UserID).Msg("Dropping chat message")
	}
}

func (s WSChatSink) Notify(n Notification) {
	if err := s.Hub.SendToUser(s.UserID, WSMessage{Type: WSNotification, PeerID: s.PeerID, Data: n}); err != nil {
		log.Debug().Err(err).Str("user_id", s.UserID).Msg("Dropping chat notification")
	}
}
