package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/conversation"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// Platform is the runtime class of the client a selector serves.
type Platform string

const (
	PlatformWeb         Platform = "web"
	PlatformNative      Platform = "native"
	PlatformConstrained Platform = "constrained"
)

const (
	DefaultFallbackDelay = 1500 * time.Millisecond
	DefaultHistoryLimit  = 50
)

// ParsePlatform validates a platform name
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformWeb, PlatformNative, PlatformConstrained:
		return p, nil
	case "":
		return PlatformNative, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Config tunes a selector
type Config struct {
	Platform      Platform
	FallbackDelay time.Duration
	HistoryLimit  int
}

// Selector routes send, subscribe and history between the primary channel
// and the direct channel. The strategy for each operation is decided once, in
// NewSelector.
type Selector struct {
	direct  *Direct
	primary Primary
	cfg     Config

	sendViaPrimary      bool
	subscribeViaPrimary bool
	historyViaPrimary   bool
}

// NewSelector probes the primary channel and fixes the strategies. primary
// may be nil. Web clients never use the primary channel, and constrained
// clients always read history directly.
func NewSelector(direct *Direct, primary Primary, cfg Config) *Selector {
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Platform == "" {
		cfg.Platform = PlatformNative
	}
	s := &Selector{direct: direct, primary: primary, cfg: cfg}
	if primary != nil && cfg.Platform != PlatformWeb {
		caps := primary.Capabilities()
		s.sendViaPrimary = caps.Send
		s.subscribeViaPrimary = caps.Subscribe
		s.historyViaPrimary = caps.History && cfg.Platform != PlatformConstrained
	}
	log.Info().
		Str("platform", string(cfg.Platform)).
		Bool("primary_send", s.sendViaPrimary).
		Bool("primary_subscribe", s.subscribeViaPrimary).
		Bool("primary_history", s.historyViaPrimary).
		Msg("Message channel strategies selected")
	return s
}

// HistoryLimit is the default number of messages LoadHistory returns
func (s *Selector) HistoryLimit() int {
	return s.cfg.HistoryLimit
}

// Send delivers a message from sender to recipient. The primary channel is
// tried first when selected; if it fails the message goes through the direct
// channel.
func (s *Selector) Send(ctx context.Context, senderID, recipientID, text string) (models.Message, error) {
	if senderID == "" {
		return models.Message{}, apperr.Invalid("sender_id", "sender is required")
	}
	if recipientID == "" {
		return models.Message{}, apperr.Invalid("recipient_id", "recipient is required")
	}
	if err := checkParticipants(senderID, recipientID); err != nil {
		return models.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, apperr.Invalid("text", "message text is required")
	}
	key := conversation.Key(senderID, recipientID)

	metaErr := s.direct.EnsureMeta(ctx, senderID, recipientID)
	if metaErr != nil {
		log.Warn().Err(metaErr).Str("conversation_key", key).Msg("Failed to ensure conversation meta")
	}

	if s.sendViaPrimary && metaErr == nil {
		out := Outgoing{
			ConversationKey: key,
			SenderID:        senderID,
			RecipientID:     recipientID,
			Text:            text,
			Timestamp:       s.direct.now().UnixMilli(),
		}
		err := s.primary.Send(ctx, out)
		if err == nil {
			return models.Message{
				SenderID:    senderID,
				RecipientID: recipientID,
				Text:        text,
				Timestamp:   out.Timestamp,
			}, nil
		}
		log.Warn().Err(err).Str("conversation_key", key).Msg("Primary channel send failed, using direct channel")
	}

	return s.direct.Send(ctx, senderID, recipientID, text)
}

func checkParticipants(a, b string) error {
	if a == "" || b == "" {
		return apperr.Invalid("participants", "both participants are required")
	}
	if !conversation.ValidID(a) || !conversation.ValidID(b) {
		return apperr.Invalid("participants", `participant ids may not contain "/" or "_"`)
	}
	return nil
}

// LoadHistory returns the last limit messages of the conversation, oldest
// first. A limit of zero or less uses the configured history limit.
func (s *Selector) LoadHistory(ctx context.Context, a, b string, limit int) ([]models.Message, error) {
	if err := checkParticipants(a, b); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if s.historyViaPrimary {
		messages, err := s.primaryHistory(ctx, a, b, limit)
		if err == nil {
			return messages, nil
		}
		log.Warn().Err(err).Str("conversation_key", conversation.Key(a, b)).Msg("Primary history failed, using direct channel")
	}
	return s.direct.LoadHistory(ctx, a, b, limit)
}

func (s *Selector) primaryHistory(ctx context.Context, a, b string, limit int) ([]models.Message, error) {
	payloads, err := s.primary.LoadHistory(ctx, a, b, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(payloads))
	for _, p := range payloads {
		msg, ok := Normalize(p)
		if !ok || !conversation.Involves(a, b, msg.SenderID, msg.RecipientID) {
			continue
		}
		messages = append(messages, msg)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})
	return lastN(messages, limit), nil
}

// Subscribe delivers live messages between a and b to fn until the returned
// subscription is closed. With a primary channel, the direct channel is only
// subscribed when no primary message arrives within the fallback delay.
func (s *Selector) Subscribe(ctx context.Context, a, b string, fn func(models.Message)) (*Subscription, error) {
	if err := checkParticipants(a, b); err != nil {
		return nil, err
	}
	key := conversation.Key(a, b)
	if err := s.direct.EnsureMeta(ctx, a, b); err != nil {
		log.Warn().Err(err).Str("conversation_key", key).Msg("Failed to ensure conversation meta")
	}

	sub := &Subscription{a: a, b: b, key: key, fn: fn, direct: s.direct}
	if !s.subscribeViaPrimary {
		if err := sub.startDirect("direct strategy", true); err != nil {
			return nil, err
		}
		return sub, nil
	}

	sub.primary = s.primary
	remove := s.primary.AddListener(sub.onPrimary)
	sub.mu.Lock()
	sub.removeListener = remove
	sub.timer = time.AfterFunc(s.cfg.FallbackDelay, func() {
		if err := sub.startDirect("primary channel silent", false); err != nil {
			log.Error().Err(err).Str("conversation_key", key).Msg("Failed to start direct fallback")
		}
	})
	sub.mu.Unlock()

	if err := s.primary.Subscribe(ctx, a, b); err != nil {
		log.Warn().Err(err).Str("conversation_key", key).Msg("Primary subscribe failed, using direct channel")
		if err := sub.startDirect("primary subscribe failed", true); err != nil {
			sub.Close()
			return nil, err
		}
		return sub, nil
	}
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		if err := s.primary.Unsubscribe(a, b); err != nil {
			log.Warn().Err(err).Str("conversation_key", key).Msg("Failed to unsubscribe primary channel")
		}
		return sub, nil
	}
	sub.primarySubscribed = true
	sub.mu.Unlock()
	return sub, nil
}

// Subscription is a live conversation subscription returned by Selector
type Subscription struct {
	a, b, key string
	fn        func(models.Message)
	direct    *Direct
	primary   Primary

	mu                sync.Mutex
	closed            bool
	primarySeen       bool
	directStarted     bool
	primarySubscribed bool
	timer             *time.Timer
	removeListener    func()
	directSub         store.Subscription
	closeOnce         sync.Once
}

// UsingDirect reports whether the direct channel has been subscribed
func (s *Subscription) UsingDirect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directStarted
}

func (s *Subscription) onPrimary(p Payload) {
	msg, ok := Normalize(p)
	if !ok {
		log.Debug().Str("conversation_key", s.key).Msg("Ignoring unrecognized primary payload")
		return
	}
	if !conversation.Involves(s.a, s.b, msg.SenderID, msg.RecipientID) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.primarySeen {
		s.primarySeen = true
		if s.timer != nil {
			s.timer.Stop()
		}
	}
	s.mu.Unlock()
	s.fn(msg)
}

func (s *Subscription) onDirect(msg models.Message) {
	if !conversation.Involves(s.a, s.b, msg.SenderID, msg.RecipientID) {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.fn(msg)
}

// startDirect subscribes the direct channel at most once per subscription.
// Unless forced, it does nothing once the primary channel has delivered.
func (s *Subscription) startDirect(reason string, force bool) error {
	s.mu.Lock()
	if s.closed || s.directStarted || (s.primarySeen && !force) {
		s.mu.Unlock()
		return nil
	}
	s.directStarted = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	log.Info().Str("conversation_key", s.key).Str("reason", reason).Msg("Subscribing direct channel")
	sub, err := s.direct.Subscribe(s.a, s.b, s.onDirect)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return nil
	}
	s.directSub = sub
	s.mu.Unlock()
	return nil
}

// Close tears down whatever the subscription set up. It is safe to call more
// than once and from several goroutines.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		timer := s.timer
		remove := s.removeListener
		primarySubscribed := s.primarySubscribed
		directSub := s.directSub
		s.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if remove != nil {
			remove()
		}
		if primarySubscribed {
			if err := s.primary.Unsubscribe(s.a, s.b); err != nil {
				log.Warn().Err(err).Str("conversation_key", s.key).Msg("Failed to unsubscribe primary channel")
			}
		}
		if directSub != nil {
			directSub.Close()
		}
		log.Debug().Str("conversation_key", s.key).Msg("Conversation subscription closed")
	})
}
