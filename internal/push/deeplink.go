package push

import "match-chat-backend/internal/conversation"

// ResolveDeepLink picks the chat peer a tapped notification should open.
// An explicit user id wins unless it names the current user; then the
// conversation key, then the sender/recipient pair.
func ResolveDeepLink(data map[string]string, currentUserID string) (string, bool) {
	for _, k := range []string{"uid", "user_id", DataRecipientID} {
		if id := data[k]; id != "" && id != currentUserID {
			return id, true
		}
	}
	if currentUserID == "" {
		return "", false
	}
	if key := data[DataConversationKey]; key != "" {
		if peer, ok := conversation.Counterpart(key, currentUserID); ok {
			return peer, true
		}
	}
	a, b := data[DataSenderID], data[DataRecipientID]
	switch {
	case a == "" || b == "":
		return "", false
	case a == currentUserID:
		return b, true
	case b == currentUserID:
		return a, true
	}
	return "", false
}
