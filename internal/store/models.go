package store

import "time"

// Message is one persisted chat message. Messages are append-only: the
// pipeline reads recent history but never mutates or deletes rows.
type Message struct {
	ID        string
	ChatJID   string
	SenderJID string
	PushName  string
	Text      string
	Timestamp time.Time
	// Group is populated for group chats, nil for direct messages.
	Group *Group
}

// Group carries the per-group policy flags. Owned by the admin surface;
// the pipeline only reads it.
type Group struct {
	JID          string `json:"jid"`
	Managed      bool   `json:"managed"`
	ForwardURL   string `json:"forward_url,omitempty"`
	NotifyOnSpam bool   `json:"notify_on_spam,omitempty"`
}

// KBTopic is one indexed documentation chunk.
type KBTopic struct {
	ID        string
	Subject   string
	Content   string
	Source    string
	Embedding []float32
}

// ScoredTopic pairs a topic with its cosine distance to a query vector.
// Smaller distance means more similar. Never persisted.
type ScoredTopic struct {
	Topic    KBTopic
	Distance float64
}
