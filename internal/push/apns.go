package push

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNSConfig configures token based APNs delivery
type APNSConfig struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNSPusher delivers notifications through Apple Push Notification service
type APNSPusher struct {
	client *apns2.Client
	topic  string
}

// NewAPNSPusher loads the .p8 signing key and creates a client
func NewAPNSPusher(cfg APNSConfig) (*APNSPusher, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	log.Info().Str("topic", cfg.Topic).Bool("production", cfg.Production).Msg("APNs client configured")
	return &APNSPusher{client: client, topic: cfg.Topic}, nil
}

// Push sends n and reports a rejection as an error
func (p *APNSPusher) Push(ctx context.Context, n Notification) error {
	res, err := p.client.PushWithContext(ctx, BuildAPNSNotification(p.topic, n))
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

// BuildAPNSNotification renders n as an alert push. Data entries become
// custom payload keys for the deep link.
func BuildAPNSNotification(topic string, n Notification) *apns2.Notification {
	pl := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Sound("default").
		ThreadID(n.Data[DataConversationKey])
	for k, v := range n.Data {
		pl.Custom(k, v)
	}
	return &apns2.Notification{
		DeviceToken: n.Token,
		Topic:       topic,
		Payload:     pl,
		Priority:    apns2.PriorityHigh,
		PushType:    apns2.PushTypeAlert,
	}
}
