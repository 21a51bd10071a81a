package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_Aliases(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
	}{
		{"snake case", Payload{"id": "m1", "sender_id": "a", "recipient_id": "b", "text": "hi", "timestamp": float64(1700)}},
		{"camel case", Payload{"messageId": "m1", "senderId": "a", "recipientId": "b", "body": "hi", "ts": "1700"}},
		{"short names", Payload{"key": "m1", "from": "a", "to": "b", "content": "hi", "time": json.Number("1700")}},
		{"uid sender", Payload{"id": "m1", "uid": "a", "recipient": "b", "message": "hi", "createdAt": 1700}},
		{"wrapped", Payload{"id": "m1", "data": map[string]any{"sender": "a", "to_id": "b", "text": "hi", "sent_at": int64(1700)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			msg, ok := Normalize(tc.payload)
			req.True(ok)
			req.Equal("m1", msg.ID)
			req.Equal("a", msg.SenderID)
			req.Equal("b", msg.RecipientID)
			req.Equal("hi", msg.Text)
			req.Equal(int64(1700), msg.Timestamp)
		})
	}
}

func TestNormalize_RFC3339Timestamp(t *testing.T) {
	req := require.New(t)

	msg, ok := Normalize(Payload{"from": "a", "to": "b", "text": "hi", "created_at": "2024-01-02T03:04:05.5Z"})
	req.True(ok)
	req.Equal(int64(1704164645500), msg.Timestamp)
}

func TestNormalize_Unrecognized(t *testing.T) {
	payloads := []Payload{
		nil,
		{},
		{"sender_id": "a", "recipient_id": "b", "timestamp": 1},
		{"sender_id": "a", "text": "hi", "timestamp": 1},
		{"sender_id": "a", "recipient_id": "b", "text": "hi"},
		{"sender_id": "a", "recipient_id": "b", "text": "   ", "timestamp": 1},
		{"sender_id": "a", "recipient_id": "b", "text": "hi", "timestamp": "yesterday"},
	}
	for _, p := range payloads {
		_, ok := Normalize(p)
		require.False(t, ok, "payload %v", p)
	}
}

func TestWatermark_OnlyMovesForward(t *testing.T) {
	req := require.New(t)
	w := NewWatermark(100)

	req.False(w.Advance(100))
	req.False(w.Advance(50))
	req.True(w.Advance(101))
	req.False(w.Advance(101))
	req.False(w.Advance(99))
	req.True(w.Advance(200))
	req.Equal(int64(200), w.Value())
}

func TestParsePlatform(t *testing.T) {
	req := require.New(t)

	p, err := ParsePlatform(" Web ")
	req.NoError(err)
	req.Equal(PlatformWeb, p)

	p, err = ParsePlatform("")
	req.NoError(err)
	req.Equal(PlatformNative, p)

	_, err = ParsePlatform("desktop")
	req.Error(err)
}
