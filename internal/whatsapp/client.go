package whatsapp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/glintworks/whatskb/internal/bus"
	"github.com/glintworks/whatskb/internal/config"

	_ "modernc.org/sqlite"
)

const sendTimeout = 30 * time.Second

// Client is the WhatsApp transport. Inbound text messages land on the
// message bus; replies go out through SendText, whose errors propagate to
// the caller so a failed dispatch is never silent.
type Client struct {
	cfg            config.WhatsAppConfig
	bus            *bus.MessageBus
	client         *whatsmeow.Client
	storeContainer *sqlstore.Container
	cancel         context.CancelFunc
	handlerID      uint32
	allow          map[string]struct{}
}

func NewClient(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Client, error) {
	storePath := strings.TrimSpace(cfg.StorePath)
	if storePath == "" {
		storePath = filepath.Join(config.ConfigDir(), "whatsapp-store.db")
	}

	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return nil, fmt.Errorf("create whatsapp store dir: %w", err)
	}

	storeDSN := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", filepath.ToSlash(storePath))
	container, err := sqlstore.New(context.Background(), "sqlite", storeDSN, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("init whatsapp session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("get whatsapp device: %w", err)
	}

	c := &Client{
		cfg:            cfg,
		bus:            msgBus,
		client:         whatsmeow.NewClient(deviceStore, waLog.Noop),
		storeContainer: container,
		allow:          allowSet(cfg.AllowFrom),
	}
	c.handlerID = c.client.AddEventHandler(c.handleEvent)

	return c, nil
}

func (c *Client) Start(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}

	ctx, c.cancel = context.WithCancel(ctx)

	if c.client.Store.ID == nil {
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			c.cancel()
			return fmt.Errorf("get whatsapp qr channel: %w", err)
		}
		go c.consumeQR(ctx, qrChan)
	}

	if err := c.client.Connect(); err != nil {
		c.cancel()
		return fmt.Errorf("connect whatsapp: %w", err)
	}

	go func() {
		<-ctx.Done()
		c.client.Disconnect()
	}()

	log.Printf("[whatsapp] connected")
	return nil
}

func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}

	if c.client != nil {
		if c.handlerID != 0 {
			c.client.RemoveEventHandler(c.handlerID)
			c.handlerID = 0
		}
		c.client.Disconnect()
	}

	if c.storeContainer != nil {
		if err := c.storeContainer.Close(); err != nil {
			return fmt.Errorf("close whatsapp store: %w", err)
		}
		c.storeContainer = nil
	}

	log.Printf("[whatsapp] stopped")
	return nil
}

// OwnJID returns the bot's own identity. The "user" part is what mention
// detection matches against.
func (c *Client) OwnJID() (types.JID, error) {
	if c.client == nil || c.client.Store.ID == nil {
		return types.EmptyJID, fmt.Errorf("whatsapp not logged in")
	}
	return c.client.Store.ID.ToNonAD(), nil
}

// SendText sends text to a chat and propagates any transport error.
func (c *Client) SendText(ctx context.Context, chatJID, text string) error {
	if c.client == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}

	jid, err := ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("parse chat jid %q: %w", chatJID, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	}); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

func (c *Client) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}

			switch evt.Event {
			case whatsmeow.QRChannelEventCode:
				log.Printf("[whatsapp] scan the QR code below to login")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			default:
				if evt.Error != nil {
					log.Printf("[whatsapp] login event=%s error=%v", evt.Event, evt.Error)
				} else {
					log.Printf("[whatsapp] login event=%s", evt.Event)
				}
			}
		}
	}
}

func (c *Client) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		c.handleMessage(e)
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	sender := evt.Info.Sender.ToNonAD().String()
	if !c.isAllowed(sender) && !c.isAllowed(evt.Info.Sender.String()) {
		log.Printf("[whatsapp] rejected message from %s", sender)
		return
	}

	// Non-text content (images, stickers, reactions) is dropped here; the
	// pipeline only answers text.
	text := extractText(evt.Message)

	c.bus.Inbound <- bus.InboundMessage{
		MessageID: evt.Info.ID,
		ChatJID:   evt.Info.Chat.String(),
		SenderJID: evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		Text:      text,
		Timestamp: evt.Info.Timestamp,
		IsGroup:   evt.Info.IsGroup,
	}
}

func extractText(msg *waE2E.Message) string {
	text := strings.TrimSpace(msg.GetConversation())
	if text == "" && msg.GetExtendedTextMessage() != nil {
		text = strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	}
	return text
}

func (c *Client) isAllowed(sender string) bool {
	if len(c.allow) == 0 {
		return true
	}
	_, ok := c.allow[sender]
	return ok
}

func allowSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowFrom))
	for _, entry := range allowFrom {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			set[entry] = struct{}{}
		}
	}
	return set
}
