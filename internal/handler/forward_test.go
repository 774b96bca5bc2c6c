package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glintworks/whatskb/internal/bus"
	"github.com/glintworks/whatskb/internal/store"
)

func TestForwardPostsMessage(t *testing.T) {
	var got bus.InboundMessage
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	msg := bus.InboundMessage{
		MessageID: "m1",
		ChatJID:   "chat@g.us",
		SenderJID: "111@s.whatsapp.net",
		PushName:  "Dana",
		Text:      "hello",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		IsGroup:   true,
	}
	NewForwarder().Forward(context.Background(), srv.URL, msg)

	if contentType != "application/json" {
		t.Errorf("content type = %q, want application/json", contentType)
	}
	if got.MessageID != msg.MessageID || got.Text != msg.Text || !got.IsGroup {
		t.Errorf("forwarded message = %+v, want %+v", got, msg)
	}
}

func TestForwardSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewForwarder()
	f.Forward(context.Background(), srv.URL, bus.InboundMessage{MessageID: "m1"})
	f.Forward(context.Background(), "http://127.0.0.1:1/unreachable", bus.InboundMessage{MessageID: "m2"})
}

func TestRouterForwardFailureDoesNotBlockAnswering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	groups := &fakeGroups{groups: map[string]*store.Group{
		"chat@g.us": {JID: "chat@g.us", Managed: true, ForwardURL: srv.URL},
	}}
	h := &fakeHandler{handles: true}
	r := NewRouter(&fakeMessages{}, groups, NewForwarder(), nil, h)

	if err := r.Process(context.Background(), inbound("@bot help", true)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(h.executed) != 1 {
		t.Error("handler must still run when forwarding fails")
	}
}
