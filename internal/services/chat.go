package services

import (
	"context"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/conversation"
	"match-chat-backend/internal/messaging"
	"match-chat-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const fallbackSenderName = "Someone"

// Notification is an in-app alert about an incoming message
type Notification struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	ConversationKey string `json:"conversation_key"`
	SenderID        string `json:"sender_id"`
}

// ChatSink receives what an open conversation produces
type ChatSink interface {
	Message(msg models.Message)
	Notify(n Notification)
}

// ChatService is the chat screen's view of a conversation
type ChatService struct {
	selector    *messaging.Selector
	userService *UserService
	now         func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(selector *messaging.Selector, userService *UserService) *ChatService {
	return &ChatService{
		selector:    selector,
		userService: userService,
		now:         time.Now,
	}
}

// History returns the last limit messages between self and peer
func (s *ChatService) History(ctx context.Context, selfID, peerID string, limit int) ([]models.Message, error) {
	return s.selector.LoadHistory(ctx, selfID, peerID, limit)
}

// Send sends text from self to peer
func (s *ChatService) Send(ctx context.Context, selfID, peerID, text string) (models.Message, error) {
	if selfID == peerID {
		return models.Message{}, apperr.Invalid("recipient_id", "cannot message yourself")
	}
	return s.selector.Send(ctx, selfID, peerID, text)
}

// ChatSession is an open conversation. Messages at or before the watermark
// are never emitted.
type ChatSession struct {
	selfID   string
	peerID   string
	peerName string
	key      string
	sink     ChatSink
	mark     *messaging.Watermark
	sub      *messaging.Subscription
}

// OpenSession loads history, places the watermark after it and starts
// streaming new messages to sink
func (s *ChatService) OpenSession(ctx context.Context, selfID, peerID string, sink ChatSink) (*ChatSession, []models.Message, error) {
	if selfID == "" || peerID == "" {
		return nil, nil, apperr.Invalid("peer_id", "both participants are required")
	}

	history, err := s.selector.LoadHistory(ctx, selfID, peerID, 0)
	if err != nil {
		return nil, nil, err
	}
	mark := s.now().UnixMilli()
	if len(history) > 0 {
		mark = history[len(history)-1].Timestamp
	}

	session := &ChatSession{
		selfID:   selfID,
		peerID:   peerID,
		peerName: s.userService.DisplayName(ctx, peerID, fallbackSenderName),
		key:      conversation.Key(selfID, peerID),
		sink:     sink,
		mark:     messaging.NewWatermark(mark),
	}

	sub, err := s.selector.Subscribe(ctx, selfID, peerID, session.handle)
	if err != nil {
		return nil, nil, err
	}
	session.sub = sub

	log.Info().
		Str("user_id", selfID).
		Str("conversation_key", session.key).
		Int("history", len(history)).
		Int64("watermark", mark).
		Msg("Chat session opened")
	return session, history, nil
}

func (c *ChatSession) handle(msg models.Message) {
	if !c.mark.Advance(msg.Timestamp) {
		return
	}
	c.sink.Message(msg)
	if msg.RecipientID == c.selfID && msg.SenderID != c.selfID {
		c.sink.Notify(Notification{
			Title:           "New message from " + c.peerName,
			Body:            msg.Text,
			ConversationKey: c.key,
			SenderID:        msg.SenderID,
		})
	}
}

// PeerID returns the other participant
func (c *ChatSession) PeerID() string {
	return c.peerID
}

// Close stops the session. Safe to call more than once.
func (c *ChatSession) Close() {
	c.sub.Close()
	log.Debug().Str("user_id", c.selfID).Str("conversation_key", c.key).Msg("Chat session closed")
}
