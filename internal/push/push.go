//go:generate go run go.uber.org/mock/mockgen -source=push.go -destination=../mocks/mock_pusher.go -package=mocks
package push

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Notification is one push to one device
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers notifications to a push transport
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}

// TokenLookup returns a user's device token, empty when none is registered
type TokenLookup interface {
	GetPushToken(ctx context.Context, userID string) (string, error)
}

// LogPusher only logs notifications. It stands in when no push transport is
// configured.
type LogPusher struct{}

func (LogPusher) Push(ctx context.Context, n Notification) error {
	log.Debug().
		Str("title", n.Title).
		Str("conversation_key", n.Data[DataConversationKey]).
		Msg("Push transport not configured, notification dropped")
	return nil
}
