package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
	chatService *services.ChatService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, userService *services.UserService, chatService *services.ChatService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		chatService: chatService,
	}
}

// wsSessions are the conversations one connection has open
type wsSessions struct {
	mu   sync.Mutex
	open map[string]*services.ChatSession
}

func (s *wsSessions) swap(peerID string, session *services.ChatSession) *services.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.open[peerID]
	if session == nil {
		delete(s.open, peerID)
	} else {
		s.open[peerID] = session
	}
	return prev
}

func (s *wsSessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for peerID, session := range s.open {
		session.Close()
		delete(s.open, peerID)
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	// The request context ends with the handler; sessions outlive single reads.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := &wsSessions{open: make(map[string]*services.ChatSession)}
	defer sessions.closeAll()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendErrorToUser(userID, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, userID, sessions, msg); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			h.sendErrorToUser(userID, err.Error())
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, userID string, sessions *wsSessions, msg services.WSMessage) error {
	switch msg.Type {
	case services.WSOpenConversation:
		return h.openConversation(ctx, userID, sessions, msg.PeerID)
	case services.WSCloseConversation:
		if prev := sessions.swap(msg.PeerID, nil); prev != nil {
			prev.Close()
		}
		return nil
	case services.WSSendMessage:
		_, err := h.chatService.Send(ctx, userID, msg.PeerID, msg.Text)
		return err
	default:
		h.sendErrorToUser(userID, "Unknown message type")
		return nil
	}
}

func (h *WebSocketHandler) openConversation(ctx context.Context, userID string, sessions *wsSessions, peerID string) error {
	sink := services.WSChatSink{Hub: h.hub, UserID: userID, PeerID: peerID}
	session, history, err := h.chatService.OpenSession(ctx, userID, peerID, sink)
	if err != nil {
		return err
	}
	if prev := sessions.swap(peerID, session); prev != nil {
		prev.Close()
	}
	return h.hub.SendToUser(userID, services.WSMessage{
		Type:     services.WSHistory,
		PeerID:   peerID,
		Messages: history,
	})
}

// sendErrorToUser sends an error message to a user
func (h *WebSocketHandler) sendErrorToUser(userID, message string) {
	if err := h.hub.SendToUser(userID, services.WSMessage{Type: services.WSError, Message: message}); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send error message")
	}
}
