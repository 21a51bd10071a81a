package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_IsOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"uid-9", "uid-10"},
		{"", "x"},
		{"same", "same"},
	}
	for _, p := range pairs {
		require.Equal(t, Key(p[0], p[1]), Key(p[1], p[0]))
	}
	require.Equal(t, "alice_bob", Key("bob", "alice"))
	require.Equal(t, "a_a", Key("a", "a"))
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"alice", "uid-10", "7f1c2b9e-3d4a-4c1e-9b1a-0e2f3a4b5c6d"} {
		require.True(t, ValidID(id), id)
	}
	for _, id := range []string{"", "bob_carol", "carol/x", "/", "a/b_c"} {
		require.False(t, ValidID(id), id)
	}
}

func TestParticipants(t *testing.T) {
	req := require.New(t)

	a, b, ok := Participants(Key("zed", "amy"))
	req.True(ok)
	req.Equal("amy", a)
	req.Equal("zed", b)

	_, _, ok = Participants("no-separator")
	req.False(ok)
}

func TestCounterpart(t *testing.T) {
	req := require.New(t)
	key := Key("u1", "u2")

	other, ok := Counterpart(key, "u1")
	req.True(ok)
	req.Equal("u2", other)

	other, ok = Counterpart(key, "u2")
	req.True(ok)
	req.Equal("u1", other)

	_, ok = Counterpart(key, "stranger")
	req.False(ok)
}

func TestInvolves(t *testing.T) {
	req := require.New(t)
	req.True(Involves("a", "b", "a", "b"))
	req.True(Involves("a", "b", "b", "a"))
	req.False(Involves("a", "b", "a", "c"))
	req.False(Involves("a", "b", "c", "b"))
}
