package push

import (
	"context"
	"strings"
	"unicode/utf8"

	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	notificationTitle = "New message"
	maxBodyRunes      = 120

	DataConversationKey = "conversation_key"
	DataSenderID        = "sender_id"
	DataRecipientID     = "recipient_id"
)

// MessageCreated is a message that was just stored
type MessageCreated struct {
	ConversationKey string
	Message         models.Message
}

// Dispatcher turns stored messages into push notifications for their
// recipients. Events are queued by Attach's hook and delivered by Run.
type Dispatcher struct {
	tokens TokenLookup
	pusher Pusher
	events chan MessageCreated
}

// NewDispatcher creates a dispatcher with a queue of the given capacity
func NewDispatcher(tokens TokenLookup, pusher Pusher, capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = 256
	}
	return &Dispatcher{
		tokens: tokens,
		pusher: pusher,
		events: make(chan MessageCreated, capacity),
	}
}

// Attach registers the dispatcher on message creation in tree
func (d *Dispatcher) Attach(tree store.Tree) {
	tree.OnCreate("messages", d.onCreate)
}

func (d *Dispatcher) onCreate(parent string, child store.Child) {
	if child.Key == repository.MetaKey {
		return
	}
	key := strings.TrimPrefix(parent, "messages/")
	if key == parent || strings.Contains(key, "/") {
		return
	}
	msg, ok := repository.DecodeMessage(child)
	if !ok || msg.RecipientID == "" {
		return
	}

	select {
	case d.events <- MessageCreated{ConversationKey: key, Message: msg}:
	default:
		log.Warn().Str("conversation_key", key).Str("message_id", msg.ID).Msg("Push queue full, notification dropped")
	}
}

// Run delivers queued events until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Msg("Push dispatcher started")
	for {
		select {
		case ev := <-d.events:
			if err := d.Deliver(ctx, ev); err != nil {
				log.Warn().Err(err).
					Str("conversation_key", ev.ConversationKey).
					Str("recipient_id", ev.Message.RecipientID).
					Msg("Push delivery failed")
			}
		case <-ctx.Done():
			log.Info().Msg("Push dispatcher stopped")
			return nil
		}
	}
}

// Deliver pushes one event. A recipient without a token is not an error.
func (d *Dispatcher) Deliver(ctx context.Context, ev MessageCreated) error {
	msg := ev.Message
	if msg.RecipientID == "" || msg.Text == "" {
		return nil
	}
	token, err := d.tokens.GetPushToken(ctx, msg.RecipientID)
	if err != nil {
		return err
	}
	if token == "" {
		log.Debug().Str("recipient_id", msg.RecipientID).Msg("No push token, skipping")
		return nil
	}

	if err := d.pusher.Push(ctx, BuildNotification(token, ev)); err != nil {
		return err
	}
	log.Debug().Str("conversation_key", ev.ConversationKey).Str("recipient_id", msg.RecipientID).Msg("Push sent")
	return nil
}

// BuildNotification renders the push for a stored message
func BuildNotification(token string, ev MessageCreated) Notification {
	return Notification{
		Token: token,
		Title: notificationTitle,
		Body:  truncate(ev.Message.Text, maxBodyRunes),
		Data: map[string]string{
			DataConversationKey: ev.ConversationKey,
			DataSenderID:        ev.Message.SenderID,
			DataRecipientID:     ev.Message.RecipientID,
		},
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
