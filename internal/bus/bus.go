package bus

import (
	"context"
	"log"
	"sync"
)

// MessageBus carries inbound transport events toward the router and
// best-effort outbound notifications toward the transport.
//
// Replies produced by the answer pipeline do NOT go through the outbound
// channel: the pipeline sends those directly so transport failures surface
// to it. The outbound channel is for fire-and-forget traffic (scheduled
// summaries, spam notices) where a failed send is only logged.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu     sync.RWMutex
	sender func(OutboundMessage) error
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
	}
}

// SubscribeOutbound registers the function that delivers outbound messages.
func (b *MessageBus) SubscribeOutbound(send func(OutboundMessage) error) {
	b.mu.Lock()
	b.sender = send
	b.mu.Unlock()
}

// DispatchOutbound drains the outbound channel until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			send := b.sender
			b.mu.RUnlock()
			if send == nil {
				log.Printf("[bus] dropping outbound to %s: no sender subscribed", msg.ChatJID)
				continue
			}
			if err := send(msg); err != nil {
				log.Printf("[bus] outbound send to %s failed: %v", msg.ChatJID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
