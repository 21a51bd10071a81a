//go:generate go run go.uber.org/mock/mockgen -source=primary.go -destination=../mocks/mock_primary.go -package=mocks
package messaging

import "context"

// Payload is a message as emitted by a primary channel. Its shape is not
// guaranteed; Normalize maps it onto models.Message.
type Payload map[string]any

// Capabilities is what a primary channel declares it can do.
type Capabilities struct {
	Send      bool
	Subscribe bool
	History   bool
}

// Outgoing is a message handed to a primary channel.
type Outgoing struct {
	ConversationKey string `json:"conversation_key"`
	SenderID        string `json:"sender_id"`
	RecipientID     string `json:"recipient_id"`
	Text            string `json:"text"`
	Timestamp       int64  `json:"timestamp"`
}

// Primary is a delegated message channel. Subscriptions emit payloads to
// every listener registered with AddListener; a channel may emit messages of
// other conversations too.
type Primary interface {
	Capabilities() Capabilities
	Send(ctx context.Context, msg Outgoing) error
	Subscribe(ctx context.Context, a, b string) error
	Unsubscribe(a, b string) error
	AddListener(fn func(Payload)) (remove func())
	LoadHistory(ctx context.Context, a, b string, limit int) ([]Payload, error)
}
