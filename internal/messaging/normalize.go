package messaging

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"match-chat-backend/internal/models"
)

// Field aliases seen in primary channel payloads, in lookup order.
var (
	idFields        = []string{"id", "message_id", "messageId", "key"}
	senderFields    = []string{"sender_id", "senderId", "sender", "from", "from_id", "fromId", "uid"}
	recipientFields = []string{"recipient_id", "recipientId", "recipient", "to", "to_id", "toId"}
	textFields      = []string{"text", "body", "content", "message"}
	timeFields      = []string{"timestamp", "ts", "time", "created_at", "createdAt", "sent_at", "sentAt"}

	// envelopeFields may wrap the actual message object.
	envelopeFields = []string{"data", "payload", "message"}
)

// Normalize maps a primary channel payload onto a Message. It reports false
// when sender, recipient, text or timestamp cannot be recognized.
func Normalize(p Payload) (models.Message, bool) {
	return normalize(p, 2)
}

func normalize(p Payload, depth int) (models.Message, bool) {
	if p == nil {
		return models.Message{}, false
	}
	msg := models.Message{
		ID:          stringField(p, idFields),
		SenderID:    stringField(p, senderFields),
		RecipientID: stringField(p, recipientFields),
		Text:        stringField(p, textFields),
	}
	ts, hasTS := timeField(p, timeFields)
	msg.Timestamp = ts

	if msg.SenderID != "" && msg.RecipientID != "" && msg.Text != "" && hasTS {
		return msg, true
	}
	if depth == 0 {
		return models.Message{}, false
	}
	for _, f := range envelopeFields {
		if inner, ok := asPayload(p[f]); ok {
			if nested, ok := normalize(inner, depth-1); ok {
				if nested.ID == "" {
					nested.ID = msg.ID
				}
				return nested, true
			}
		}
	}
	return models.Message{}, false
}

func asPayload(v any) (Payload, bool) {
	switch m := v.(type) {
	case Payload:
		return m, true
	case map[string]any:
		return Payload(m), true
	}
	return nil, false
}

func stringField(p Payload, names []string) string {
	for _, n := range names {
		switch v := p[n].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10)
			}
		case int64:
			return strconv.FormatInt(v, 10)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// timeField reads a millisecond timestamp from numbers, numeric strings or
// RFC 3339 strings.
func timeField(p Payload, names []string) (int64, bool) {
	for _, n := range names {
		switch v := p[n].(type) {
		case float64:
			return int64(v), true
		case int64:
			return v, true
		case int:
			return int64(v), true
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return i, true
			}
			if f, err := v.Float64(); err == nil {
				return int64(f), true
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return i, true
			}
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t.UnixMilli(), true
			}
		}
	}
	return 0, false
}
