package models

// User represents a profile stored under users/{id}
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Email       string `json:"email"`
	Bio         string `json:"bio,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	PhotoInline string `json:"photo_inline,omitempty"`
	PushToken   string `json:"push_token,omitempty"`
}

// LikeRecord is stored under likes/{actor}/{target}
type LikeRecord struct {
	ActorID   string `json:"-"`
	TargetID  string `json:"-"`
	Timestamp int64  `json:"timestamp"`
}

// PassRecord is stored under passes/{actor}/{target}
type PassRecord struct {
	ActorID   string `json:"-"`
	TargetID  string `json:"-"`
	Timestamp int64  `json:"timestamp"`
}

// MatchState is the state of a match from its owner's point of view
type MatchState string

const (
	MatchPending  MatchState = "pending"
	MatchMutual   MatchState = "mutual"
	MatchRejected MatchState = "rejected"
)

// Active reports whether the match shows up in the owner's chat list
func (s MatchState) Active() bool {
	return s == MatchPending || s == MatchMutual
}

// MatchRecord is stored under matches/{owner}/{other}
type MatchRecord struct {
	OwnerID   string     `json:"-"`
	OtherID   string     `json:"-"`
	State     MatchState `json:"state"`
	Timestamp int64      `json:"timestamp"`
}

// ConversationMeta is stored under messages/{key}/meta
type ConversationMeta struct {
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`
}

// Message is one chat message. Timestamp is in milliseconds.
type Message struct {
	ID          string `json:"id,omitempty"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
}
