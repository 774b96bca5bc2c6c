package handler

import (
	"context"
	"fmt"
	"log"

	"github.com/glintworks/whatskb/internal/embed"
	"github.com/glintworks/whatskb/internal/llm"
	"github.com/glintworks/whatskb/internal/store"
)

// HistoryReader supplies recent chat context for prompts.
type HistoryReader interface {
	RecentHistory(ctx context.Context, chatJID string, limit int) ([]store.Message, error)
}

// TopicSearcher finds the knowledge-base topics nearest to a query vector.
type TopicSearcher interface {
	NearestTopics(ctx context.Context, embedding []float32, k int) ([]store.ScoredTopic, error)
}

// Sender delivers a reply to a chat. Delivery errors propagate back through
// the pipeline so the gateway can see a failed answer.
type Sender interface {
	SendText(ctx context.Context, chatJID, text string) error
}

// KnowledgeBase answers questions from the company knowledge base:
// rephrase the question into a search query, embed it, retrieve the
// nearest topics, and generate a grounded reply.
type KnowledgeBase struct {
	history   HistoryReader
	topics    TopicSearcher
	embedder  embed.Embedder
	rephraser llm.Client
	generator llm.Client
	sender    Sender
	retrier   *llm.Retrier
	botUser   func() string

	topK         int
	historyLimit int
	threshold    float64
}

type KnowledgeBaseConfig struct {
	TopK              int
	HistoryLimit      int
	DistanceThreshold float64
}

func NewKnowledgeBase(history HistoryReader, topics TopicSearcher, embedder embed.Embedder,
	rephraser, generator llm.Client, sender Sender, botUser func() string, cfg KnowledgeBaseConfig) *KnowledgeBase {
	return &KnowledgeBase{
		history:      history,
		topics:       topics,
		embedder:     embedder,
		rephraser:    rephraser,
		generator:    generator,
		sender:       sender,
		retrier:      llm.NewRetrier(),
		botUser:      botUser,
		topK:         cfg.TopK,
		historyLimit: cfg.HistoryLimit,
		threshold:    cfg.DistanceThreshold,
	}
}

func (kb *KnowledgeBase) Handles(msg *store.Message) bool {
	return ShouldProcess(msg, kb.botUser())
}

func (kb *KnowledgeBase) Execute(ctx context.Context, msg *store.Message) error {
	history, err := kb.history.RecentHistory(ctx, msg.ChatJID, kb.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	rephrasePrompt := buildRephrasePrompt(msg.Text, history)
	query, err := kb.retrier.Do(ctx, "rephrase", func(ctx context.Context) (string, error) {
		return kb.rephraser.Run(ctx, rephrasePrompt)
	})
	if err != nil {
		return err
	}

	vectors, err := kb.embedder.Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	scored, err := kb.topics.NearestTopics(ctx, vectors[0], kb.topK)
	if err != nil {
		return fmt.Errorf("search topics: %w", err)
	}
	if kb.threshold > 0 {
		kept := scored[:0]
		for _, st := range scored {
			if st.Distance <= kb.threshold {
				kept = append(kept, st)
			}
		}
		scored = kept
	}

	// The generator sees the user's original wording, not the English
	// search query, so it can answer in the user's language.
	genPrompt := buildGenerationPrompt(msg.Text, history, topicContents(scored))
	answer, err := kb.retrier.Do(ctx, "generate", func(ctx context.Context) (string, error) {
		return kb.generator.Run(ctx, genPrompt)
	})
	if err != nil {
		return err
	}

	log.Printf("[kb] sender=%s chat=%s question=%q query=%q topics=%d distances=%v answer=%q",
		msg.SenderJID, msg.ChatJID, msg.Text, query, len(scored), distances(scored), answer)

	return kb.sender.SendText(ctx, msg.ChatJID, answer)
}

func topicContents(scored []store.ScoredTopic) []string {
	contents := make([]string, len(scored))
	for i, st := range scored {
		contents[i] = st.Topic.Subject + "\n" + st.Topic.Content
	}
	return contents
}

func distances(scored []store.ScoredTopic) []float64 {
	ds := make([]float64, len(scored))
	for i, st := range scored {
		ds[i] = st.Distance
	}
	return ds
}
