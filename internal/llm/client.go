package llm

import (
	"context"
	"fmt"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/google/uuid"

	"github.com/glintworks/whatskb/internal/config"
)

// Client runs one prompt against a language model and returns the text
// output. Implementations bind a fixed system prompt at construction, so
// each pipeline stage (rephrase, generate, summarize) gets its own Client.
type Client interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Runtime is the slice of the agentsdk runtime we use (mockable in tests).
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close() error
}

type runtimeClient struct {
	rt Runtime
}

// NewClient builds a Client over an agentsdk-go runtime with the given
// system prompt. Tools are disabled and every Run uses a fresh session ID:
// the pipeline supplies chat history in the prompt itself and each
// invocation must be stateless.
func NewClient(cfg *config.Config, systemPrompt string) (Client, func(), error) {
	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Bot.Model,
			MaxTokens: cfg.Bot.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Bot.Model,
			MaxTokens: cfg.Bot.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ProjectRoot:         cfg.Bot.Workspace,
		ModelFactory:        provider,
		SystemPrompt:        systemPrompt,
		MaxIterations:       1,
		EnabledBuiltinTools: []string{},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create llm runtime: %w", err)
	}

	c := &runtimeClient{rt: rt}
	return c, func() { _ = rt.Close() }, nil
}

// NewClientWithRuntime wraps an existing Runtime (used by tests).
func NewClientWithRuntime(rt Runtime) Client {
	return &runtimeClient{rt: rt}
}

func (c *runtimeClient) Run(ctx context.Context, prompt string) (string, error) {
	resp, err := c.rt.Run(ctx, api.Request{
		Prompt:    prompt,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Result == nil {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Result.Output, nil
}
