package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"match-chat-backend/internal/mocks"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/push"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDispatcher_PushesStoredMessages(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl := gomock.NewController(t)

	tree := store.NewMemoryTree()
	users := repository.NewUserRepository(tree)
	messages := repository.NewMessageRepository(tree)
	req.NoError(users.UpdatePushToken(ctx, "bob", "bob-device"))

	delivered := make(chan push.Notification, 1)
	pusher := mocks.NewMockPusher(ctrl)
	pusher.EXPECT().Push(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n push.Notification) error {
		delivered <- n
		return nil
	}).Times(1)

	dispatcher := push.NewDispatcher(users, pusher, 8)
	dispatcher.Attach(tree)
	go dispatcher.Run(ctx)

	// Given meta, a message to a user without token and a long message to bob
	req.NoError(messages.CreateMeta(ctx, "alice_bob", models.ConversationMeta{ParticipantA: "alice", ParticipantB: "bob"}))
	_, err := messages.Append(ctx, "alice_bob", models.Message{SenderID: "bob", RecipientID: "alice", Text: "no token", Timestamp: 1})
	req.NoError(err)
	long := strings.Repeat("ñ", 150)
	_, err = messages.Append(ctx, "alice_bob", models.Message{SenderID: "alice", RecipientID: "bob", Text: long, Timestamp: 2})
	req.NoError(err)

	// Then exactly one push goes out
	select {
	case n := <-delivered:
		req.Equal("bob-device", n.Token)
		req.Equal("New message", n.Title)
		req.Equal(strings.Repeat("ñ", 120), n.Body)
		req.Equal(map[string]string{
			push.DataConversationKey: "alice_bob",
			push.DataSenderID:        "alice",
			push.DataRecipientID:     "bob",
		}, n.Data)
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
	time.Sleep(30 * time.Millisecond)
}

func TestDispatcher_DeliverReportsFailures(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	tokens := mocks.NewMockTokenLookup(ctrl)
	pusher := mocks.NewMockPusher(ctrl)
	dispatcher := push.NewDispatcher(tokens, pusher, 1)
	ev := push.MessageCreated{
		ConversationKey: "alice_bob",
		Message:         models.Message{SenderID: "alice", RecipientID: "bob", Text: "hi"},
	}

	tokens.EXPECT().GetPushToken(gomock.Any(), "bob").Return("", errors.New("backend down"))
	req.Error(dispatcher.Deliver(ctx, ev))

	tokens.EXPECT().GetPushToken(gomock.Any(), "bob").Return("device", nil)
	pusher.EXPECT().Push(gomock.Any(), gomock.Any()).Return(errors.New("bad token"))
	req.Error(dispatcher.Deliver(ctx, ev))

	// Records without recipient or text never reach the token lookup
	req.NoError(dispatcher.Deliver(ctx, push.MessageCreated{Message: models.Message{SenderID: "alice", Text: "hi"}}))
	req.NoError(dispatcher.Deliver(ctx, push.MessageCreated{Message: models.Message{SenderID: "alice", RecipientID: "bob"}}))
}

func TestResolveDeepLink(t *testing.T) {
	cases := []struct {
		name string
		data map[string]string
		self string
		want string
		ok   bool
	}{
		{"explicit uid", map[string]string{"uid": "carol"}, "alice", "carol", true},
		{"recipient is self, use key", map[string]string{"recipient_id": "alice", "conversation_key": "alice_bob"}, "alice", "bob", true},
		{"key counterpart", map[string]string{"conversation_key": "alice_bob"}, "bob", "alice", true},
		{"pair fallback", map[string]string{"conversation_key": "x_y", "sender_id": "bob", "recipient_id": "alice"}, "alice", "bob", true},
		{"incomplete pair", map[string]string{"sender_id": "bob"}, "alice", "", false},
		{"nothing usable", map[string]string{}, "alice", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := push.ResolveDeepLink(tc.data, tc.self)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBuildAPNSNotification(t *testing.T) {
	req := require.New(t)
	n := push.Notification{
		Token: "device",
		Title: "New message",
		Body:  "hi",
		Data:  map[string]string{push.DataConversationKey: "alice_bob", push.DataSenderID: "alice"},
	}

	apn := push.BuildAPNSNotification("com.example.app", n)
	req.Equal("device", apn.DeviceToken)
	req.Equal("com.example.app", apn.Topic)

	raw, err := json.Marshal(apn.Payload)
	req.NoError(err)
	var body map[string]any
	req.NoError(json.Unmarshal(raw, &body))
	aps := body["aps"].(map[string]any)
	alert := aps["alert"].(map[string]any)
	req.Equal("New message", alert["title"])
	req.Equal("hi", alert["body"])
	req.Equal("alice_bob", aps["thread-id"])
	req.Equal("alice_bob", body["conversation_key"])
	req.Equal("alice", body["sender_id"])
}
