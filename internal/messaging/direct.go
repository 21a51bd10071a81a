package messaging

import (
	"context"
	"fmt"
	"time"

	"match-chat-backend/internal/conversation"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// Direct is the backend-native channel, reading and writing the conversation
// subtree of the keyed-tree store.
type Direct struct {
	messages *repository.MessageRepository
	now      func() time.Time
}

// NewDirect creates a direct channel
func NewDirect(messages *repository.MessageRepository) *Direct {
	return &Direct{messages: messages, now: time.Now}
}

// EnsureMeta creates the conversation meta record when it is missing. Two
// participants racing here write the same pair, so the last write wins safely.
func (d *Direct) EnsureMeta(ctx context.Context, a, b string) error {
	key := conversation.Key(a, b)
	exists, err := d.messages.MetaExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if a > b {
		a, b = b, a
	}
	log.Debug().Str("conversation_key", key).Msg("Creating conversation meta")
	return d.messages.CreateMeta(ctx, key, models.ConversationMeta{ParticipantA: a, ParticipantB: b})
}

// Send appends a message to the conversation of sender and recipient
func (d *Direct) Send(ctx context.Context, senderID, recipientID, text string) (models.Message, error) {
	msg := models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Timestamp:   d.now().UnixMilli(),
	}
	id, err := d.messages.Append(ctx, conversation.Key(senderID, recipientID), msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

// Subscribe streams the conversation, existing messages first
func (d *Direct) Subscribe(a, b string, fn func(models.Message)) (store.Subscription, error) {
	return d.messages.Subscribe(conversation.Key(a, b), fn)
}

// LoadHistory returns the last limit messages in ascending timestamp order
func (d *Direct) LoadHistory(ctx context.Context, a, b string, limit int) ([]models.Message, error) {
	messages, err := d.messages.List(ctx, conversation.Key(a, b))
	if err != nil {
		return nil, err
	}
	return lastN(messages, limit), nil
}

func lastN(messages []models.Message, limit int) []models.Message {
	if limit > 0 && len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}
