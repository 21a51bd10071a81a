package handlers

import (
	"net/http"
	"strconv"

	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/push"
	"match-chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ChatHandler handles conversation requests
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// SendMessageRequest represents a message to send
type SendMessageRequest struct {
	Text string `json:"text"`
}

// DeepLinkRequest carries the data of a tapped push notification
type DeepLinkRequest struct {
	Data map[string]string `json:"data"`
}

// ListMessages handles GET /api/v1/conversations/{peer_id}/messages?limit=
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.History(ctx, userID, chi.URLParam(r, "peer_id"), limit)
	if err != nil {
		respondServiceError(w, err, "Failed to load messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// SendMessage handles POST /api/v1/conversations/{peer_id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.chatService.Send(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "peer_id"), req.Text)
	if err != nil {
		respondServiceError(w, err, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// DeepLink handles POST /api/v1/deeplink and returns the peer to open
func (h *ChatHandler) DeepLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req DeepLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	peerID, ok := push.ResolveDeepLink(req.Data, middleware.GetUserID(ctx))
	if !ok {
		respondError(w, "notification does not identify a conversation", http.StatusUnprocessableEntity)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"peer_id": peerID})
}
