package repository

import (
	"context"
	"fmt"
	"sort"

	"match-chat-backend/internal/models"
	"match-chat-backend/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	messagesRoot = "messages"
	// MetaKey is the conversation child holding the participant pair.
	MetaKey = "meta"
)

// MessageRepository handles conversations under messages/{key}
type MessageRepository struct {
	tree store.Tree
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(tree store.Tree) *MessageRepository {
	return &MessageRepository{tree: tree}
}

// MessagesPath returns the tree path of a conversation
func MessagesPath(conversationKey string) string {
	return store.Join(messagesRoot, conversationKey)
}

// MetaExists checks whether the conversation meta record exists
func (r *MessageRepository) MetaExists(ctx context.Context, conversationKey string) (bool, error) {
	exists, err := r.tree.Exists(ctx, store.Join(messagesRoot, conversationKey, MetaKey))
	if err != nil {
		return false, fmt.Errorf("failed to check conversation meta: %w", err)
	}
	return exists, nil
}

// CreateMeta writes the conversation meta record
func (r *MessageRepository) CreateMeta(ctx context.Context, conversationKey string, meta models.ConversationMeta) error {
	if err := r.tree.Set(ctx, store.Join(messagesRoot, conversationKey, MetaKey), meta); err != nil {
		return fmt.Errorf("failed to create conversation meta: %w", err)
	}
	return nil
}

// Append stores a message and returns its generated id
func (r *MessageRepository) Append(ctx context.Context, conversationKey string, msg models.Message) (string, error) {
	msg.ID = ""
	id, err := r.tree.Push(ctx, MessagesPath(conversationKey), msg)
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	return id, nil
}

// List returns all messages of a conversation sorted by timestamp. Messages
// with equal timestamps keep their insertion order.
func (r *MessageRepository) List(ctx context.Context, conversationKey string) ([]models.Message, error) {
	children, err := r.tree.Children(ctx, MessagesPath(conversationKey))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	messages := make([]models.Message, 0, len(children))
	for _, c := range children {
		msg, ok := DecodeMessage(c)
		if !ok {
			continue
		}
		messages = append(messages, msg)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})
	return messages, nil
}

// Subscribe delivers every message of the conversation, existing ones first
func (r *MessageRepository) Subscribe(conversationKey string, fn func(models.Message)) (store.Subscription, error) {
	sub, err := r.tree.Subscribe(MessagesPath(conversationKey), func(c store.Child) {
		if msg, ok := DecodeMessage(c); ok {
			fn(msg)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to messages: %w", err)
	}
	return sub, nil
}

// DecodeMessage turns a conversation child into a message. The meta record
// and records without text are skipped.
func DecodeMessage(c store.Child) (models.Message, bool) {
	if c.Key == MetaKey {
		return models.Message{}, false
	}
	var msg models.Message
	if err := c.Decode(&msg); err != nil {
		log.Warn().Err(err).Str("message_id", c.Key).Msg("Skipping undecodable message")
		return models.Message{}, false
	}
	if msg.Text == "" {
		return models.Message{}, false
	}
	msg.ID = c.Key
	return msg, true
}
