package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type profile struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Token string `json:"token,omitempty"`
}

func TestKVTree_SetGetAndAssemble(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	req.NoError(tree.Set(ctx, "users/a", profile{Name: "Ana", Age: 30}))
	req.NoError(tree.Set(ctx, "users/b", profile{Name: "Ben", Age: 28}))

	var p profile
	found, err := tree.Get(ctx, "users/a", &p)
	req.NoError(err)
	req.True(found)
	req.Equal("Ana", p.Name)

	// Given records stored at their own paths, reading the parent assembles them
	var all map[string]profile
	found, err = tree.Get(ctx, "users", &all)
	req.NoError(err)
	req.True(found)
	req.Len(all, 2)
	req.Equal(28, all["b"].Age)

	// And a field inside a record is reachable through its ancestor row
	var name string
	found, err = tree.Get(ctx, "users/b/name", &name)
	req.NoError(err)
	req.True(found)
	req.Equal("Ben", name)

	found, err = tree.Get(ctx, "users/missing", &p)
	req.NoError(err)
	req.False(found)
}

func TestKVTree_UpdateMergesFields(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	req.NoError(tree.Set(ctx, "users/a", profile{Name: "Ana", Age: 30}))
	req.NoError(tree.Update(ctx, "users/a", map[string]any{"token": "device-1"}))

	var p profile
	_, err := tree.Get(ctx, "users/a", &p)
	req.NoError(err)
	req.Equal(profile{Name: "Ana", Age: 30, Token: "device-1"}, p)

	// Update on an absent record creates it
	req.NoError(tree.Update(ctx, "users/c", map[string]any{"name": "Cy"}))
	_, err = tree.Get(ctx, "users/c", &p)
	req.NoError(err)
	req.Equal("Cy", p.Name)
}

func TestKVTree_SetReplacesSubtree(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	req.NoError(tree.Set(ctx, "likes/a/b", map[string]int64{"timestamp": 1}))
	req.NoError(tree.Set(ctx, "likes/a/c", map[string]int64{"timestamp": 2}))
	req.NoError(tree.Set(ctx, "likes/a", map[string]any{"d": map[string]int64{"timestamp": 3}}))

	children, err := tree.Children(ctx, "likes/a")
	req.NoError(err)
	req.Len(children, 1)
	req.Equal("d", children[0].Key)
}

func TestKVTree_SetMany(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	req.NoError(tree.SetMany(ctx, map[string]any{
		"matches/a/b": map[string]any{"state": "mutual", "timestamp": 10},
		"matches/b/a": map[string]any{"state": "mutual", "timestamp": 10},
	}))
	for _, p := range []string{"matches/a/b", "matches/b/a"} {
		ok, err := tree.Exists(ctx, p)
		req.NoError(err)
		req.True(ok)
	}
}

func TestKVTree_SetManySharedAncestorRow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	// Given a record stored as a single row
	req.NoError(tree.Set(ctx, "users/a", profile{Name: "Ana", Age: 30}))

	// When two fields of that row are written together
	req.NoError(tree.SetMany(ctx, map[string]any{
		"users/a/name":  "Anna",
		"users/a/token": "device-1",
	}))

	// Then both land
	var p profile
	found, err := tree.Get(ctx, "users/a", &p)
	req.NoError(err)
	req.True(found)
	req.Equal(profile{Name: "Anna", Age: 30, Token: "device-1"}, p)
}

func TestKVTree_SetManyNestedPaths(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	// When a record and a field below it are written together
	req.NoError(tree.SetMany(ctx, map[string]any{
		"users/b":       profile{Name: "Ben", Age: 28},
		"users/b/token": "device-2",
	}))

	// Then the field is not lost to the record write
	var p profile
	found, err := tree.Get(ctx, "users/b", &p)
	req.NoError(err)
	req.True(found)
	req.Equal(profile{Name: "Ben", Age: 28, Token: "device-2"}, p)
}

func TestKVTree_PushKeepsInsertionOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()
	frozen := time.Unix(1700000000, 0)
	tree.now = func() time.Time { return frozen }

	var keys []string
	for _, text := range []string{"first", "second", "third"} {
		key, err := tree.Push(ctx, "messages/a_b", map[string]string{"text": text})
		req.NoError(err)
		keys = append(keys, key)
	}
	req.True(keys[0] < keys[1] && keys[1] < keys[2])

	children, err := tree.Children(ctx, "messages/a_b")
	req.NoError(err)
	req.Len(children, 3)
	var m map[string]string
	req.NoError(children[2].Decode(&m))
	req.Equal("third", m["text"])
}

func TestKVTree_InvalidPath(t *testing.T) {
	tree := NewMemoryTree()
	err := tree.Set(context.Background(), "users//a", 1)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestKVTree_SubscribeReplaysThenStreams(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	_, err := tree.Push(ctx, "messages/a_b", map[string]string{"text": "old"})
	req.NoError(err)

	got := make(chan string, 10)
	sub, err := tree.Subscribe("messages/a_b", func(c Child) {
		var m map[string]string
		_ = c.Decode(&m)
		got <- m["text"]
	})
	req.NoError(err)
	defer sub.Close()

	_, err = tree.Push(ctx, "messages/a_b", map[string]string{"text": "new"})
	req.NoError(err)
	// Writes to other conversations are not delivered
	_, err = tree.Push(ctx, "messages/a_c", map[string]string{"text": "other"})
	req.NoError(err)

	req.Equal("old", receive(t, got))
	req.Equal("new", receive(t, got))
	select {
	case text := <-got:
		req.Failf("unexpected delivery", "got %q", text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKVTree_SubscribeCloseStopsDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	var mu sync.Mutex
	count := 0
	sub, err := tree.Subscribe("messages/a_b", func(Child) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	req.NoError(err)

	sub.Close()
	sub.Close()

	_, err = tree.Push(ctx, "messages/a_b", map[string]string{"text": "late"})
	req.NoError(err)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	req.Zero(count)
	req.Empty(tree.subs)
}

func TestKVTree_OnCreateHook(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := NewMemoryTree()

	type created struct{ parent, key string }
	var seen []created
	tree.OnCreate("messages", func(parent string, c Child) {
		seen = append(seen, created{parent, c.Key})
	})

	req.NoError(tree.Set(ctx, "messages/a_b/meta", map[string]string{"participant_a": "a"}))
	// Rewriting an existing child is not a creation
	req.NoError(tree.Set(ctx, "messages/a_b/meta", map[string]string{"participant_a": "a"}))
	key, err := tree.Push(ctx, "messages/a_b", map[string]string{"text": "hi"})
	req.NoError(err)
	req.NoError(tree.Set(ctx, "users/a", map[string]string{"name": "Ana"}))

	req.Equal([]created{{"messages/a_b", "meta"}, {"messages/a_b", key}}, seen)
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for delivery")
		return ""
	}
}
