package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/glintworks/whatskb/internal/bus"
)

const forwardTimeout = 30 * time.Second

// Forwarder posts group messages to a per-group webhook. Forwarding is
// best-effort: failures are logged and never interrupt message handling.
type Forwarder struct {
	httpClient *http.Client
}

func NewForwarder() *Forwarder {
	return &Forwarder{httpClient: &http.Client{Timeout: forwardTimeout}}
}

func (f *Forwarder) Forward(ctx context.Context, url string, msg bus.InboundMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[forward] marshal message %s: %v", msg.MessageID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[forward] build request for %s: %v", url, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Printf("[forward] post to %s: %v", url, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[forward] post to %s: status %d", url, resp.StatusCode)
	}
}
