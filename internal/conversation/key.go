// Package conversation derives the canonical identity of a two-party chat.
package conversation

import "strings"

// Separator joins the two participant ids of a conversation key.
const Separator = "_"

// ValidID reports whether id can take part in a conversation. Ids become tree
// path segments and halves of a key, so they carry neither "/" nor Separator.
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/"+Separator)
}

// Key returns the order-independent key for the conversation between a and b.
// Key(a, b) == Key(b, a) for every pair, including a == b.
func Key(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + Separator + b
}

// Participants splits a key built by Key back into its two ids.
func Participants(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, Separator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Counterpart returns the participant of key that is not self.
func Counterpart(key, self string) (string, bool) {
	a, b, ok := Participants(key)
	if !ok {
		return "", false
	}
	switch self {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

// Involves reports whether the message between sender and recipient belongs to
// the conversation of a and b, in either direction.
func Involves(a, b, sender, recipient string) bool {
	return (sender == a && recipient == b) || (sender == b && recipient == a)
}
