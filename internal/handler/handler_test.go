package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glintworks/whatskb/internal/bus"
	"github.com/glintworks/whatskb/internal/store"
)

type fakeMessages struct {
	saved []*store.Message
	err   error
}

func (f *fakeMessages) SaveMessage(_ context.Context, msg *store.Message) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, msg)
	return nil
}

type fakeGroups struct {
	groups map[string]*store.Group
	err    error
}

func (f *fakeGroups) GetGroup(_ context.Context, jid string) (*store.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[jid], nil
}

type fakeHandler struct {
	handles  bool
	executed []*store.Message
	err      error
}

func (f *fakeHandler) Handles(*store.Message) bool { return f.handles }

func (f *fakeHandler) Execute(_ context.Context, msg *store.Message) error {
	f.executed = append(f.executed, msg)
	return f.err
}

type fakeNotifier struct {
	alerts []string
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.alerts = append(f.alerts, text)
	return f.err
}

func inbound(text string, group bool) bus.InboundMessage {
	return bus.InboundMessage{
		MessageID: "msg-1",
		ChatJID:   "chat@g.us",
		SenderJID: "111@s.whatsapp.net",
		PushName:  "Dana",
		Text:      text,
		Timestamp: time.Now(),
		IsGroup:   group,
	}
}

func TestRouterDispatchesFirstMatch(t *testing.T) {
	messages := &fakeMessages{}
	skipped := &fakeHandler{handles: false}
	matched := &fakeHandler{handles: true}
	after := &fakeHandler{handles: true}
	r := NewRouter(messages, &fakeGroups{}, nil, nil, skipped, matched, after)

	if err := r.Process(context.Background(), inbound("hello", false)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(messages.saved) != 1 {
		t.Fatalf("saved %d messages, want 1", len(messages.saved))
	}
	if len(matched.executed) != 1 {
		t.Errorf("matched handler executed %d times, want 1", len(matched.executed))
	}
	if len(skipped.executed) != 0 || len(after.executed) != 0 {
		t.Error("non-first-match handlers must not execute")
	}
}

func TestRouterSkipsEmptyText(t *testing.T) {
	messages := &fakeMessages{}
	h := &fakeHandler{handles: true}
	r := NewRouter(messages, &fakeGroups{}, nil, nil, h)

	if err := r.Process(context.Background(), inbound("   ", false)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(messages.saved) != 1 {
		t.Error("messages without text are still persisted")
	}
	if len(h.executed) != 0 {
		t.Error("handler must not run for empty text")
	}
}

func TestRouterSkipsUnmanagedGroup(t *testing.T) {
	groups := &fakeGroups{groups: map[string]*store.Group{
		"chat@g.us": {JID: "chat@g.us", Managed: false},
	}}
	h := &fakeHandler{handles: true}
	r := NewRouter(&fakeMessages{}, groups, nil, nil, h)

	if err := r.Process(context.Background(), inbound("@bot help", true)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(h.executed) != 0 {
		t.Error("handler must not run for unmanaged groups")
	}
}

func TestRouterSavesMessageWhenGroupLookupFails(t *testing.T) {
	wantErr := errors.New("connection reset")
	messages := &fakeMessages{}
	h := &fakeHandler{handles: true}
	r := NewRouter(messages, &fakeGroups{err: wantErr}, nil, nil, h)

	err := r.Process(context.Background(), inbound("@bot help", true))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Process() error = %v, want %v", err, wantErr)
	}
	if len(messages.saved) != 1 {
		t.Error("message must be persisted even when the group lookup fails")
	}
	if len(h.executed) != 0 {
		t.Error("handler must not run without group policy")
	}
}

func TestRouterPropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("send failed")
	h := &fakeHandler{handles: true, err: wantErr}
	r := NewRouter(&fakeMessages{}, &fakeGroups{}, nil, nil, h)

	if err := r.Process(context.Background(), inbound("hello", false)); !errors.Is(err, wantErr) {
		t.Errorf("Process() error = %v, want %v", err, wantErr)
	}
}

func TestRouterSpamAlert(t *testing.T) {
	groups := &fakeGroups{groups: map[string]*store.Group{
		"chat@g.us": {JID: "chat@g.us", Managed: true, NotifyOnSpam: true},
	}}
	notifier := &fakeNotifier{}
	r := NewRouter(&fakeMessages{}, groups, nil, NewSpamHandler(notifier))

	msg := inbound("join us https://chat.whatsapp.com/AbCdEf", true)
	if err := r.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notifier.alerts))
	}
}

func TestRouterSpamAlertFailureSwallowed(t *testing.T) {
	groups := &fakeGroups{groups: map[string]*store.Group{
		"chat@g.us": {JID: "chat@g.us", Managed: true, NotifyOnSpam: true},
	}}
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	r := NewRouter(&fakeMessages{}, groups, nil, NewSpamHandler(notifier))

	msg := inbound("https://chat.whatsapp.com/AbCdEf", true)
	if err := r.Process(context.Background(), msg); err != nil {
		t.Errorf("notifier failure must not surface, got %v", err)
	}
}

func TestRouterNoSpamAlertWhenDisabled(t *testing.T) {
	groups := &fakeGroups{groups: map[string]*store.Group{
		"chat@g.us": {JID: "chat@g.us", Managed: true, NotifyOnSpam: false},
	}}
	notifier := &fakeNotifier{}
	r := NewRouter(&fakeMessages{}, groups, nil, NewSpamHandler(notifier))

	msg := inbound("https://chat.whatsapp.com/AbCdEf", true)
	if err := r.Process(context.Background(), msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(notifier.alerts) != 0 {
		t.Error("alert sent for group with notifications disabled")
	}
}
