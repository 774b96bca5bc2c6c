package handler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glintworks/whatskb/internal/llm"
	"github.com/glintworks/whatskb/internal/store"
)

type fakeHistory struct {
	messages []store.Message
	err      error
}

func (f *fakeHistory) RecentHistory(_ context.Context, _ string, _ int) ([]store.Message, error) {
	return f.messages, f.err
}

type fakeTopics struct {
	scored   []store.ScoredTopic
	gotK     int
	gotQuery []float32
}

func (f *fakeTopics) NearestTopics(_ context.Context, embedding []float32, k int) ([]store.ScoredTopic, error) {
	f.gotQuery = embedding
	f.gotK = k
	return f.scored, nil
}

type fakeEmbedder struct {
	vectors  [][]float32
	gotTexts []string
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.gotTexts = texts
	return f.vectors, f.err
}

type fakeLLM struct {
	output   string
	failures int
	calls    int
	prompts  []string
	err      error
}

func (f *fakeLLM) Run(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.failures > 0 {
		f.failures--
		return "", errors.New("model overloaded")
	}
	return f.output, nil
}

type fakeSender struct {
	sent []string
	to   []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, chatJID, text string) error {
	f.to = append(f.to, chatJID)
	f.sent = append(f.sent, text)
	return f.err
}

func fastRetrier() *llm.Retrier {
	return &llm.Retrier{Attempts: llm.DefaultAttempts, BaseDelay: time.Nanosecond, MaxDelay: time.Nanosecond}
}

func newTestKB(history *fakeHistory, topics *fakeTopics, embedder *fakeEmbedder,
	rephraser, generator *fakeLLM, sender *fakeSender, cfg KnowledgeBaseConfig) *KnowledgeBase {
	kb := NewKnowledgeBase(history, topics, embedder, rephraser, generator, sender,
		func() string { return "12345" }, cfg)
	kb.retrier = fastRetrier()
	return kb
}

func TestKnowledgeBaseAnswers(t *testing.T) {
	history := &fakeHistory{messages: []store.Message{
		{SenderJID: "222@s.whatsapp.net", PushName: "Omer", Text: "any luck?", Timestamp: time.Now()},
		{SenderJID: "111@s.whatsapp.net", PushName: "Dana", Text: "still locked out", Timestamp: time.Now().Add(-time.Minute)},
	}}
	topics := &fakeTopics{scored: []store.ScoredTopic{
		{Topic: store.KBTopic{ID: "t1", Subject: "Password reset", Content: "Go to Settings > Security and click Reset password."}, Distance: 0.12},
		{Topic: store.KBTopic{ID: "t2", Subject: "Account lockout", Content: "Accounts unlock after 15 minutes."}, Distance: 0.34},
	}}
	embedder := &fakeEmbedder{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	rephraser := &fakeLLM{output: "how to reset platform password"}
	generator := &fakeLLM{output: "Go to Settings > Security and click Reset password."}
	sender := &fakeSender{}

	kb := newTestKB(history, topics, embedder, rephraser, generator, sender,
		KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7})

	msg := &store.Message{ID: "m1", ChatJID: "chat@g.us", SenderJID: "111@s.whatsapp.net",
		Text: "@12345 How do I reset my password?"}
	if err := kb.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := embedder.gotTexts; len(got) != 1 || got[0] != "how to reset platform password" {
		t.Errorf("embedded texts = %v, want the rephrased query", got)
	}
	if topics.gotK != 10 {
		t.Errorf("search k = %d, want 10", topics.gotK)
	}
	if len(sender.sent) != 1 || sender.sent[0] != generator.output {
		t.Fatalf("sent = %v, want the generated answer", sender.sent)
	}
	if sender.to[0] != "chat@g.us" {
		t.Errorf("reply went to %s, want chat@g.us", sender.to[0])
	}

	genPrompt := generator.prompts[0]
	if !strings.Contains(genPrompt, "User Query: @12345 How do I reset my password?") {
		t.Error("generation prompt must carry the user's original wording")
	}
	if strings.Contains(genPrompt, "User Query: how to reset platform password") {
		t.Error("generation prompt must not substitute the rephrased search query")
	}
	if !strings.Contains(genPrompt, "Password reset\nGo to Settings > Security") ||
		!strings.Contains(genPrompt, "Account lockout\nAccounts unlock after 15 minutes.") {
		t.Error("generation prompt missing retrieved topic subject or content")
	}
	if !strings.Contains(genPrompt, "Dana: still locked out\nOmer: any luck?") {
		t.Error("generation prompt history not in chronological order")
	}
}

func TestKnowledgeBaseEmptyRetrieval(t *testing.T) {
	generator := &fakeLLM{output: "I don't have that documented, let me connect you."}
	sender := &fakeSender{}
	kb := newTestKB(&fakeHistory{}, &fakeTopics{}, &fakeEmbedder{vectors: [][]float32{{0.1}}},
		&fakeLLM{output: "query"}, generator, sender, KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7})

	msg := &store.Message{ChatJID: "chat", Text: "@12345 anything?"}
	if err := kb.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(generator.prompts[0], noDocsFound) {
		t.Error("generation prompt must carry the no-documentation marker when retrieval is empty")
	}
	if len(sender.sent) != 1 {
		t.Error("an answer is still sent when retrieval is empty")
	}
}

func TestKnowledgeBaseDistanceThreshold(t *testing.T) {
	topics := &fakeTopics{scored: []store.ScoredTopic{
		{Topic: store.KBTopic{ID: "near", Content: "near content"}, Distance: 0.2},
		{Topic: store.KBTopic{ID: "far", Content: "far content"}, Distance: 0.9},
	}}
	generator := &fakeLLM{output: "answer"}
	kb := newTestKB(&fakeHistory{}, topics, &fakeEmbedder{vectors: [][]float32{{0.1}}},
		&fakeLLM{output: "query"}, generator, &fakeSender{},
		KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7, DistanceThreshold: 0.5})

	msg := &store.Message{ChatJID: "chat", Text: "@12345 q"}
	if err := kb.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	prompt := generator.prompts[0]
	if !strings.Contains(prompt, "near content") {
		t.Error("topic under the threshold was dropped")
	}
	if strings.Contains(prompt, "far content") {
		t.Error("topic over the threshold leaked into the prompt")
	}
}

func TestKnowledgeBaseRetriesRephrase(t *testing.T) {
	rephraser := &fakeLLM{output: "query", failures: 5}
	sender := &fakeSender{}
	kb := newTestKB(&fakeHistory{}, &fakeTopics{}, &fakeEmbedder{vectors: [][]float32{{0.1}}},
		rephraser, &fakeLLM{output: "answer"}, sender, KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7})

	msg := &store.Message{ChatJID: "chat", Text: "@12345 q"}
	if err := kb.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rephraser.calls != 6 {
		t.Errorf("rephraser called %d times, want 6", rephraser.calls)
	}
	if len(sender.sent) != 1 {
		t.Error("answer still sent after retries recover")
	}
}

func TestKnowledgeBaseRetryExhaustion(t *testing.T) {
	rephraser := &fakeLLM{err: errors.New("invalid api key")}
	sender := &fakeSender{}
	kb := newTestKB(&fakeHistory{}, &fakeTopics{}, &fakeEmbedder{vectors: [][]float32{{0.1}}},
		rephraser, &fakeLLM{output: "answer"}, sender, KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7})

	msg := &store.Message{ChatJID: "chat", Text: "@12345 q"}
	err := kb.Execute(context.Background(), msg)
	if err == nil {
		t.Fatal("Execute() succeeded, want exhaustion error")
	}
	if rephraser.calls != 6 {
		t.Errorf("rephraser called %d times, want 6", rephraser.calls)
	}
	if len(sender.sent) != 0 {
		t.Error("no reply must be sent when rephrasing fails")
	}
}

func TestKnowledgeBaseSendErrorPropagates(t *testing.T) {
	wantErr := errors.New("not connected")
	sender := &fakeSender{err: wantErr}
	kb := newTestKB(&fakeHistory{}, &fakeTopics{}, &fakeEmbedder{vectors: [][]float32{{0.1}}},
		&fakeLLM{output: "query"}, &fakeLLM{output: "answer"}, sender,
		KnowledgeBaseConfig{TopK: 10, HistoryLimit: 7})

	msg := &store.Message{ChatJID: "chat", Text: "@12345 q"}
	if err := kb.Execute(context.Background(), msg); !errors.Is(err, wantErr) {
		t.Errorf("Execute() error = %v, want %v", err, wantErr)
	}
}
