// Package gateway wires the stores, model clients, and WhatsApp transport
// into the running assistant.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/glintworks/whatskb/internal/alert"
	"github.com/glintworks/whatskb/internal/bus"
	"github.com/glintworks/whatskb/internal/config"
	"github.com/glintworks/whatskb/internal/cron"
	"github.com/glintworks/whatskb/internal/embed"
	"github.com/glintworks/whatskb/internal/handler"
	"github.com/glintworks/whatskb/internal/llm"
	"github.com/glintworks/whatskb/internal/store"
	"github.com/glintworks/whatskb/internal/summary"
	"github.com/glintworks/whatskb/internal/whatsapp"
)

// ClientFactory creates a model client bound to a system prompt (allows
// mocking in tests).
type ClientFactory func(cfg *config.Config, systemPrompt string) (llm.Client, func(), error)

// Options for creating a Gateway
type Options struct {
	ClientFactory ClientFactory
	SignalChan    chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      *store.Store
	wa         *whatsapp.Client
	router     *handler.Router
	cron       *cron.Service
	summarizer *summary.Service
	httpServer *Server
	closers    []func()
	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(ctx context.Context, cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	st, err := store.Open(ctx, cfg.Database.URI, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	wa, err := whatsapp.NewClient(cfg.WhatsApp, g.bus)
	if err != nil {
		g.close()
		return nil, fmt.Errorf("create whatsapp client: %w", err)
	}
	g.wa = wa

	factory := opts.ClientFactory
	if factory == nil {
		factory = llm.NewClient
	}

	company := cfg.Bot.CompanyName
	rephraser, err := g.newClient(factory, handler.RephraseSystemPrompt(company))
	if err != nil {
		return nil, err
	}
	generator, err := g.newClient(factory, handler.GenerationSystemPrompt(company))
	if err != nil {
		return nil, err
	}

	embedder := embed.NewClient(cfg.Embedding)

	var spam *handler.SpamHandler
	if cfg.Alerts.Telegram.Enabled {
		notifier, err := alert.NewTelegramNotifier(cfg.Alerts.Telegram)
		if err != nil {
			g.close()
			return nil, fmt.Errorf("create telegram notifier: %w", err)
		}
		spam = handler.NewSpamHandler(notifier)
	}

	kb := handler.NewKnowledgeBase(st, st, embedder, rephraser, generator, wa, g.botUser,
		handler.KnowledgeBaseConfig{
			TopK:              cfg.Retrieval.TopK,
			HistoryLimit:      cfg.Retrieval.HistoryLimit,
			DistanceThreshold: cfg.Retrieval.DistanceThreshold,
		})
	g.router = handler.NewRouter(st, st, handler.NewForwarder(), spam, kb)

	g.cron = cron.NewService()
	if cfg.Summary.Enabled {
		summarizerClient, err := g.newClient(factory, summary.SystemPrompt(company))
		if err != nil {
			return nil, err
		}
		g.summarizer = summary.NewService(st, st, summarizerClient, busSender{g.bus})
		g.cron.Add(cron.Job{
			Name:     "daily-summary",
			Schedule: cfg.Summary.Schedule,
			Run: func(ctx context.Context) error {
				_, err := g.summarizer.Run(ctx)
				return err
			},
		})
	}

	var summaryRunner SummaryRunner
	if g.summarizer != nil {
		summaryRunner = g.summarizer
	}
	g.httpServer = NewServer(cfg.Gateway, st, embedder, summaryRunner)

	// Outbound bus traffic rides the same WhatsApp client.
	g.bus.SubscribeOutbound(func(msg bus.OutboundMessage) error {
		return wa.SendText(context.Background(), msg.ChatJID, msg.Text)
	})

	g.signalChan = opts.SignalChan
	return g, nil
}

// busSender queues digests on the outbound channel; delivery is
// best-effort and failures are only logged by the dispatcher.
type busSender struct {
	bus *bus.MessageBus
}

func (s busSender) SendText(_ context.Context, chatJID, text string) error {
	s.bus.Outbound <- bus.OutboundMessage{ChatJID: chatJID, Text: text}
	return nil
}

func (g *Gateway) newClient(factory ClientFactory, systemPrompt string) (llm.Client, error) {
	client, closeFn, err := factory(g.cfg, systemPrompt)
	if err != nil {
		g.close()
		return nil, fmt.Errorf("create model client: %w", err)
	}
	if closeFn != nil {
		g.closers = append(g.closers, closeFn)
	}
	return client, nil
}

// botUser resolves the bot's own phone user part, used by the mention
// gate. Empty until the WhatsApp session is paired.
func (g *Gateway) botUser() string {
	wa := g.wa
	if wa == nil {
		return ""
	}
	jid, err := wa.OwnJID()
	if err != nil {
		return ""
	}
	return jid.User
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.wa.Start(ctx); err != nil {
		return fmt.Errorf("start whatsapp: %w", err)
	}

	if err := g.cron.Start(ctx); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}

	go func() {
		if err := g.httpServer.Start(); err != nil {
			log.Printf("[gateway] http server error: %v", err)
		}
	}()

	go g.processLoop(ctx)

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

// processLoop drains inbound messages; each message is handled in its own
// goroutine so one slow model call cannot stall the chat stream.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			go func(msg bus.InboundMessage) {
				if err := g.router.Process(ctx, msg); err != nil {
					log.Printf("[gateway] process message %s: %v", msg.MessageID, err)
				}
			}(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) Shutdown() error {
	if g.cron != nil {
		g.cron.Stop()
	}
	if g.httpServer != nil {
		g.httpServer.Stop()
	}
	g.close()
	log.Printf("[gateway] shutdown complete")
	return nil
}

// close releases everything constructed so far: the WhatsApp client and
// its session store, the model runtimes, and the database pool. Shutdown
// and every constructor error path funnel through here.
func (g *Gateway) close() {
	if g.wa != nil {
		if err := g.wa.Stop(); err != nil {
			log.Printf("[gateway] stop whatsapp warning: %v", err)
		}
		g.wa = nil
	}
	for _, closeFn := range g.closers {
		closeFn()
	}
	g.closers = nil
	if g.store != nil {
		g.store.Close()
		g.store = nil
	}
}
