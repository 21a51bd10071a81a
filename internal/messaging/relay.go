package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"match-chat-backend/internal/conversation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrRelayClosed is returned for requests on a closed relay channel.
var ErrRelayClosed = errors.New("relay channel closed")

// RelayConfig configures a RelayChannel
type RelayConfig struct {
	URL            string
	Token          string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// relayFrame is the JSON frame exchanged with the relay. Requests carry an
// op and a request id; the relay answers with an "ack", "history" or "error"
// event for that id and pushes "message" events for subscribed conversations.
type relayFrame struct {
	Op              string    `json:"op,omitempty"`
	Event           string    `json:"event,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	ConversationKey string    `json:"conversation_key,omitempty"`
	Message         *Outgoing `json:"message,omitempty"`
	Limit           int       `json:"limit,omitempty"`
	Payload         Payload   `json:"payload,omitempty"`
	Messages        []Payload `json:"messages,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// RelayChannel is a primary channel backed by an external message relay
// reached over a websocket. The connection is dialed lazily and redialed on
// the next request after it drops.
type RelayChannel struct {
	cfg    RelayConfig
	dialer *websocket.Dialer

	writeMu sync.Mutex
	dialMu  sync.Mutex

	mu           sync.Mutex
	conn         *websocket.Conn
	closed       bool
	pending      map[string]chan relayFrame
	listeners    map[uint64]func(Payload)
	nextListener uint64
}

// NewRelayChannel creates a relay channel. Nothing is dialed until the first
// request.
func NewRelayChannel(cfg RelayConfig) *RelayChannel {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &RelayChannel{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		pending:   make(map[string]chan relayFrame),
		listeners: make(map[uint64]func(Payload)),
	}
}

// Capabilities reports that the relay handles send, subscribe and history
func (r *RelayChannel) Capabilities() Capabilities {
	return Capabilities{Send: true, Subscribe: true, History: true}
}

// Send hands a message to the relay and waits for its ack
func (r *RelayChannel) Send(ctx context.Context, msg Outgoing) error {
	_, err := r.request(ctx, relayFrame{Op: "send", ConversationKey: msg.ConversationKey, Message: &msg})
	return err
}

// Subscribe asks the relay to push messages of the conversation
func (r *RelayChannel) Subscribe(ctx context.Context, a, b string) error {
	_, err := r.request(ctx, relayFrame{Op: "subscribe", ConversationKey: conversation.Key(a, b)})
	return err
}

// Unsubscribe stops pushes for the conversation
func (r *RelayChannel) Unsubscribe(a, b string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RequestTimeout)
	defer cancel()
	_, err := r.request(ctx, relayFrame{Op: "unsubscribe", ConversationKey: conversation.Key(a, b)})
	return err
}

// AddListener registers fn for every pushed message
func (r *RelayChannel) AddListener(fn func(Payload)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// LoadHistory fetches up to limit messages of the conversation
func (r *RelayChannel) LoadHistory(ctx context.Context, a, b string, limit int) ([]Payload, error) {
	reply, err := r.request(ctx, relayFrame{Op: "history", ConversationKey: conversation.Key(a, b), Limit: limit})
	if err != nil {
		return nil, err
	}
	return reply.Messages, nil
}

// Close drops the connection and fails pending requests
func (r *RelayChannel) Close() error {
	r.mu.Lock()
	r.closed = true
	conn := r.conn
	r.conn = nil
	waiting := r.pending
	r.pending = make(map[string]chan relayFrame)
	r.mu.Unlock()

	failPending(waiting, relayFrame{Event: "closed"})
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// connect returns the live connection, dialing one when there is none. Dials
// are serialized by dialMu; r.mu is never held across a dial.
func (r *RelayChannel) connect(ctx context.Context) (*websocket.Conn, error) {
	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	r.mu.Lock()
	closed, conn := r.closed, r.conn
	r.mu.Unlock()
	if closed {
		return nil, ErrRelayClosed
	}
	if conn != nil {
		return conn, nil
	}

	header := http.Header{}
	if r.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	conn, _, err := r.dialer.DialContext(ctx, r.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil, ErrRelayClosed
	}
	r.conn = conn
	r.mu.Unlock()
	go r.readLoop(conn)

	log.Info().Str("url", r.cfg.URL).Msg("Connected to message relay")
	return conn, nil
}

func (r *RelayChannel) request(ctx context.Context, frame relayFrame) (relayFrame, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return relayFrame{}, err
	}

	frame.RequestID = uuid.New().String()
	reply := make(chan relayFrame, 1)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return relayFrame{}, ErrRelayClosed
	}
	r.pending[frame.RequestID] = reply
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, frame.RequestID)
		r.mu.Unlock()
	}()

	r.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(r.cfg.RequestTimeout))
	err = conn.WriteJSON(frame)
	r.writeMu.Unlock()
	if err != nil {
		r.drop(conn, err)
		return relayFrame{}, fmt.Errorf("failed to write relay %s request: %w", frame.Op, err)
	}

	timer := time.NewTimer(r.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		if resp.Event == "closed" {
			return relayFrame{}, ErrRelayClosed
		}
		if resp.Event == "error" {
			return relayFrame{}, fmt.Errorf("relay rejected %s: %s", frame.Op, resp.Error)
		}
		return resp, nil
	case <-timer.C:
		return relayFrame{}, fmt.Errorf("relay %s request timed out", frame.Op)
	case <-ctx.Done():
		return relayFrame{}, ctx.Err()
	}
}

func (r *RelayChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.drop(conn, err)
			return
		}

		var frame relayFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed relay frame")
			continue
		}

		if frame.Event == "message" {
			r.mu.Lock()
			listeners := make([]func(Payload), 0, len(r.listeners))
			for _, fn := range r.listeners {
				listeners = append(listeners, fn)
			}
			r.mu.Unlock()
			for _, fn := range listeners {
				fn(frame.Payload)
			}
			continue
		}

		r.mu.Lock()
		ch, ok := r.pending[frame.RequestID]
		r.mu.Unlock()
		if ok {
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// drop forgets a broken connection and fails the requests waiting on it.
func (r *RelayChannel) drop(conn *websocket.Conn, cause error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	waiting := r.pending
	r.pending = make(map[string]chan relayFrame)
	r.mu.Unlock()

	conn.Close()
	failPending(waiting, relayFrame{Event: "error", Error: "connection lost"})
	log.Warn().Err(cause).Str("url", r.cfg.URL).Msg("Message relay connection lost")
}

func failPending(waiting map[string]chan relayFrame, frame relayFrame) {
	for _, ch := range waiting {
		select {
		case ch <- frame:
		default:
		}
	}
}
