package handler

import (
	"context"
	"fmt"
	"log"

	"github.com/glintworks/whatskb/internal/store"
)

// Notifier raises an alert to the admins.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SpamHandler alerts admins when a group invite link shows up in a managed
// group. Notification failures are logged and swallowed; spam alerting
// never affects the message pipeline.
type SpamHandler struct {
	notifier Notifier
}

func NewSpamHandler(notifier Notifier) *SpamHandler {
	return &SpamHandler{notifier: notifier}
}

func (s *SpamHandler) Handle(ctx context.Context, msg *store.Message) {
	name := msg.PushName
	if name == "" {
		name = msg.SenderJID
	}
	text := fmt.Sprintf("Possible spam in group %s from %s:\n%s", msg.ChatJID, name, msg.Text)
	if err := s.notifier.Notify(ctx, text); err != nil {
		log.Printf("[spam] notify admins for message %s: %v", msg.ID, err)
	}
}
