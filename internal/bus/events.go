package bus

import "time"

// InboundMessage is one message received from the WhatsApp transport.
// The JSON shape is also what group forwarding posts downstream.
type InboundMessage struct {
	MessageID string    `json:"message_id"`
	ChatJID   string    `json:"chat_jid"`
	SenderJID string    `json:"sender_jid"`
	PushName  string    `json:"push_name,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsGroup   bool      `json:"is_group"`
}

// OutboundMessage is a reply or notification headed back to a chat.
type OutboundMessage struct {
	ChatJID string
	Text    string
}
