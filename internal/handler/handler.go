package handler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/glintworks/whatskb/internal/bus"
	"github.com/glintworks/whatskb/internal/store"
)

const groupInviteLink = "https://chat.whatsapp.com/"

// Handler is one intent the router can dispatch to. Handlers are tried in
// registration order and the first match executes; today the knowledge-base
// answerer is the only intent, but the dispatch table keeps new intents
// from growing branches inside the router.
type Handler interface {
	Handles(msg *store.Message) bool
	Execute(ctx context.Context, msg *store.Message) error
}

// MessageWriter persists inbound messages.
type MessageWriter interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// GroupReader loads group policy flags.
type GroupReader interface {
	GetGroup(ctx context.Context, jid string) (*store.Group, error)
}

// Router turns inbound transport events into handler invocations. One
// Process call handles one message end to end; the gateway runs each call
// in its own goroutine.
type Router struct {
	messages  MessageWriter
	groups    GroupReader
	forwarder *Forwarder
	spam      *SpamHandler
	handlers  []Handler
}

func NewRouter(messages MessageWriter, groups GroupReader, forwarder *Forwarder, spam *SpamHandler, handlers ...Handler) *Router {
	return &Router{
		messages:  messages,
		groups:    groups,
		forwarder: forwarder,
		spam:      spam,
		handlers:  handlers,
	}
}

// Process stores the message, forwards it when the group asks for that,
// gates, and dispatches to the first matching handler. Only handler
// execution errors propagate; forwarding and spam notification are
// best-effort by contract.
func (r *Router) Process(ctx context.Context, in bus.InboundMessage) error {
	msg := &store.Message{
		ID:        in.MessageID,
		ChatJID:   in.ChatJID,
		SenderJID: in.SenderJID,
		PushName:  in.PushName,
		Text:      in.Text,
		Timestamp: in.Timestamp,
	}

	// The group lookup result feeds both persistence and gating, but a
	// lookup failure must not cost us the message: save first, then bail.
	var groupErr error
	if in.IsGroup {
		group, err := r.groups.GetGroup(ctx, in.ChatJID)
		if err != nil {
			groupErr = err
		} else {
			msg.Group = group
		}
	}

	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		return err
	}
	if groupErr != nil {
		return fmt.Errorf("load group %s: %w", in.ChatJID, groupErr)
	}

	if r.forwarder != nil && msg.Group != nil && msg.Group.Managed && msg.Group.ForwardURL != "" {
		r.forwarder.Forward(ctx, msg.Group.ForwardURL, in)
	}

	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	if msg.Group != nil && !msg.Group.Managed {
		log.Printf("[router] ignoring message from unmanaged group %s", msg.Group.JID)
		return nil
	}

	var execErr error
	for _, h := range r.handlers {
		if h.Handles(msg) {
			execErr = h.Execute(ctx, msg)
			break
		}
	}

	// Invite-link spam is checked regardless of whether an intent matched.
	if r.spam != nil && msg.Group != nil && msg.Group.Managed && msg.Group.NotifyOnSpam &&
		strings.Contains(msg.Text, groupInviteLink) {
		r.spam.Handle(ctx, msg)
	}

	return execErr
}
