package messaging_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/conversation"
	"match-chat-backend/internal/messaging"
	"match-chat-backend/internal/mocks"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fullCaps = messaging.Capabilities{Send: true, Subscribe: true, History: true}

type recorder struct {
	mu       sync.Mutex
	messages []models.Message
}

func (r *recorder) add(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) snapshot() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages...)
}

func newDirect() (*messaging.Direct, *repository.MessageRepository) {
	repo := repository.NewMessageRepository(store.NewMemoryTree())
	return messaging.NewDirect(repo), repo
}

func TestSelector_WebNeverTouchesPrimary(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	// Given a primary channel with no expectations, any call fails the test
	primary := mocks.NewMockPrimary(ctrl)
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformWeb})

	// When
	msg, err := selector.Send(ctx, "alice", "bob", "  hello  ")

	// Then
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.Equal("hello", msg.Text)
	stored, err := repo.List(ctx, conversation.Key("alice", "bob"))
	req.NoError(err)
	req.Len(stored, 1)
	metaExists, err := repo.MetaExists(ctx, conversation.Key("alice", "bob"))
	req.NoError(err)
	req.True(metaExists)
}

func TestSelector_SendRejectsBlankText(t *testing.T) {
	req := require.New(t)
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, nil, messaging.Config{})

	_, err := selector.Send(context.Background(), "alice", "bob", "   ")
	req.ErrorIs(err, apperr.ErrValidation)

	_, err = selector.Send(context.Background(), "", "bob", "hi")
	req.ErrorIs(err, apperr.ErrValidation)

	exists, err := repo.MetaExists(context.Background(), conversation.Key("alice", "bob"))
	req.NoError(err)
	req.False(exists)
}

func TestSelector_RejectsIDsOutsideOneConversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := store.NewMemoryTree()
	selector := messaging.NewSelector(messaging.NewDirect(repository.NewMessageRepository(tree)), nil, messaging.Config{})

	// Given bob and carol talking
	_, err := selector.Send(ctx, "bob", "carol", "hi carol")
	req.NoError(err)

	// When a third user aims at their conversation through a crafted id
	_, err = selector.Send(ctx, "zed", "bob_carol/x", "injected")
	req.ErrorIs(err, apperr.ErrValidation)
	_, err = selector.Send(ctx, "zed", "bob_carol", "injected")
	req.ErrorIs(err, apperr.ErrValidation)
	_, err = selector.LoadHistory(ctx, "zed", "carol/x", 0)
	req.ErrorIs(err, apperr.ErrValidation)
	_, err = selector.Subscribe(ctx, "zed", "bob_carol/x", func(models.Message) {})
	req.ErrorIs(err, apperr.ErrValidation)

	// Then the conversation holds only its meta and its own message
	children, err := tree.Children(ctx, repository.MessagesPath(conversation.Key("bob", "carol")))
	req.NoError(err)
	req.Len(children, 2)
	req.Equal(repository.MetaKey, children[len(children)-1].Key)
}

func TestDirect_EnsureMetaKeepsIDsWhole(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := store.NewMemoryTree()
	direct := messaging.NewDirect(repository.NewMessageRepository(tree))

	// Given ids that contain the key separator
	req.NoError(direct.EnsureMeta(ctx, "c", "a_b"))

	// Then the meta names the two participants as given, ordered
	var meta models.ConversationMeta
	found, err := tree.Get(ctx, repository.MessagesPath(conversation.Key("a_b", "c"))+"/"+repository.MetaKey, &meta)
	req.NoError(err)
	req.True(found)
	req.Equal(models.ConversationMeta{ParticipantA: "a_b", ParticipantB: "c"}, meta)
}

func TestSelector_SendUsesPrimary(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, out messaging.Outgoing) error {
		req.Equal("alice_bob", out.ConversationKey)
		req.Equal("bob", out.SenderID)
		req.Equal("hi", out.Text)
		return nil
	})
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformNative})

	_, err := selector.Send(ctx, "bob", "alice", "hi")
	req.NoError(err)

	stored, err := repo.List(ctx, "alice_bob")
	req.NoError(err)
	req.Empty(stored)
}

func TestSelector_SendFallsBackToDirect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("bridge unavailable"))
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformNative})

	msg, err := selector.Send(ctx, "alice", "bob", "hi")
	req.NoError(err)
	req.NotEmpty(msg.ID)

	stored, err := repo.List(ctx, "alice_bob")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hi", stored[0].Text)
}

func TestSelector_SubscribeFallsBackWhenPrimaryIsSilent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	var removed atomic.Bool
	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().AddListener(gomock.Any()).Return(func() { removed.Store(true) })
	primary.EXPECT().Subscribe(gomock.Any(), "alice", "bob").Return(nil)
	primary.EXPECT().Unsubscribe("alice", "bob").Return(nil)
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{
		Platform:      messaging.PlatformNative,
		FallbackDelay: 20 * time.Millisecond,
	})

	// Given
	rec := &recorder{}
	sub, err := selector.Subscribe(ctx, "alice", "bob", rec.add)
	req.NoError(err)

	// When the primary channel stays silent past the deadline
	req.Eventually(sub.UsingDirect, time.Second, 5*time.Millisecond)
	_, err = repo.Append(ctx, "alice_bob", models.Message{SenderID: "bob", RecipientID: "alice", Text: "late", Timestamp: 10})
	req.NoError(err)

	// Then messages arrive through the direct channel
	req.Eventually(func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	req.Equal("late", rec.snapshot()[0].Text)

	sub.Close()
	sub.Close()
	req.True(removed.Load())
}

func TestSelector_PrimaryMessageCancelsFallback(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	var listener func(messaging.Payload)
	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().AddListener(gomock.Any()).DoAndReturn(func(fn func(messaging.Payload)) func() {
		listener = fn
		return func() {}
	})
	primary.EXPECT().Subscribe(gomock.Any(), "alice", "bob").Return(nil)
	primary.EXPECT().Unsubscribe("alice", "bob").Return(nil)
	direct, _ := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{
		Platform:      messaging.PlatformNative,
		FallbackDelay: 30 * time.Millisecond,
	})

	rec := &recorder{}
	sub, err := selector.Subscribe(ctx, "alice", "bob", rec.add)
	req.NoError(err)
	defer sub.Close()

	// When the primary channel emits one message for this pair and one for another
	listener(messaging.Payload{"senderId": "carol", "recipientId": "alice", "body": "not yours", "ts": 1})
	listener(messaging.Payload{"senderId": "bob", "recipientId": "alice", "body": "hey", "ts": 2})
	listener(messaging.Payload{"unexpected": true})

	// Then only the pair's message is delivered and direct is never subscribed
	time.Sleep(80 * time.Millisecond)
	got := rec.snapshot()
	req.Len(got, 1)
	req.Equal("hey", got[0].Text)
	req.False(sub.UsingDirect())
}

func TestSelector_PrimarySubscribeErrorSubscribesDirectOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().AddListener(gomock.Any()).Return(func() {})
	primary.EXPECT().Subscribe(gomock.Any(), "alice", "bob").Return(errors.New("no plugin"))
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{
		Platform:      messaging.PlatformNative,
		FallbackDelay: 20 * time.Millisecond,
	})

	_, err := repo.Append(ctx, "alice_bob", models.Message{SenderID: "alice", RecipientID: "bob", Text: "first", Timestamp: 1})
	req.NoError(err)

	rec := &recorder{}
	sub, err := selector.Subscribe(ctx, "alice", "bob", rec.add)
	req.NoError(err)
	defer sub.Close()
	req.True(sub.UsingDirect())

	// The fallback deadline passes without a second direct subscription
	time.Sleep(60 * time.Millisecond)
	req.Len(rec.snapshot(), 1)
}

func TestSelector_CloseImmediatelyDeliversNothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, nil, messaging.Config{Platform: messaging.PlatformWeb})

	var calls atomic.Int32
	sub, err := selector.Subscribe(ctx, "alice", "bob", func(models.Message) { calls.Add(1) })
	req.NoError(err)
	sub.Close()

	_, err = repo.Append(ctx, "alice_bob", models.Message{SenderID: "bob", RecipientID: "alice", Text: "after close", Timestamp: 5})
	req.NoError(err)

	time.Sleep(50 * time.Millisecond)
	req.Zero(calls.Load())
}

func TestSelector_HistoryOrderedAndLimited(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, nil, messaging.Config{HistoryLimit: 2})

	for _, ts := range []int64{5, 3, 9} {
		_, err := repo.Append(ctx, "alice_bob", models.Message{SenderID: "alice", RecipientID: "bob", Text: "m", Timestamp: ts})
		req.NoError(err)
	}

	all, err := selector.LoadHistory(ctx, "bob", "alice", 10)
	req.NoError(err)
	req.Equal([]int64{3, 5, 9}, timestamps(all))

	last, err := selector.LoadHistory(ctx, "alice", "bob", 0)
	req.NoError(err)
	req.Equal([]int64{5, 9}, timestamps(last))
}

func TestSelector_ConstrainedHistoryIsDirect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	// LoadHistory has no expectation, so a call would fail the test
	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformConstrained})

	_, err := repo.Append(ctx, "alice_bob", models.Message{SenderID: "alice", RecipientID: "bob", Text: "m", Timestamp: 1})
	req.NoError(err)

	history, err := selector.LoadHistory(ctx, "alice", "bob", 0)
	req.NoError(err)
	req.Len(history, 1)
}

func TestSelector_PrimaryHistoryNormalized(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().LoadHistory(gomock.Any(), "alice", "bob", 50).Return([]messaging.Payload{
		{"from": "bob", "to": "alice", "text": "second", "ts": 20},
		{"from": "alice", "to": "bob", "text": "first", "ts": "10"},
		{"from": "carol", "to": "bob", "text": "other", "ts": 15},
		{"garbage": 1},
	}, nil)
	direct, _ := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformNative})

	history, err := selector.LoadHistory(ctx, "alice", "bob", 0)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("first", history[0].Text)
	req.Equal("second", history[1].Text)
}

func TestSelector_PrimaryHistoryErrorFallsBack(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	primary := mocks.NewMockPrimary(ctrl)
	primary.EXPECT().Capabilities().Return(fullCaps)
	primary.EXPECT().LoadHistory(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	direct, repo := newDirect()
	selector := messaging.NewSelector(direct, primary, messaging.Config{Platform: messaging.PlatformNative})

	_, err := repo.Append(ctx, "alice_bob", models.Message{SenderID: "bob", RecipientID: "alice", Text: "stored", Timestamp: 1})
	req.NoError(err)

	history, err := selector.LoadHistory(ctx, "alice", "bob", 0)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("stored", history[0].Text)
}

func timestamps(messages []models.Message) []int64 {
	out := make([]int64, len(messages))
	for i, m := range messages {
		out[i] = m.Timestamp
	}
	return out
}
