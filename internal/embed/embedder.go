package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glintworks/whatskb/internal/config"
)

const defaultBatchSize = 64

// Embedder turns text into fixed-dimension vectors, one per input string.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client calls an OpenAI-compatible /v1/embeddings endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dim        int
	batchSize  int
	httpClient *http.Client
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if cfg.TimeoutMs <= 0 {
		timeout = time.Duration(config.DefaultEmbeddingTimeoutMs) * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		dim:        cfg.Dimension,
		batchSize:  defaultBatchSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: empty input")
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("embed: empty text at index %d", i)
		}
		normalized[i] = trimmed
	}

	if len(normalized) <= c.batchSize {
		return c.request(ctx, normalized)
	}

	vectors := make([][]float32, 0, len(normalized))
	for start := 0; start < len(normalized); start += c.batchSize {
		end := min(start+c.batchSize, len(normalized))
		chunk, err := c.request(ctx, normalized[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}

func (c *Client) request(ctx context.Context, input []string) ([][]float32, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("embed: missing base url")
	}
	if c.model == "" {
		return nil, fmt.Errorf("embed: missing model")
	}

	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}

	return c.collect(decoded.Data, len(input))
}

// collect orders response items by index and enforces the configured
// dimension on every vector.
func (c *Client) collect(data []embeddingData, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("embed: response count mismatch: got %d want %d", len(data), want)
	}

	vectors := make([][]float32, want)
	for _, item := range data {
		if item.Index < 0 || item.Index >= want {
			return nil, fmt.Errorf("embed: invalid response index %d", item.Index)
		}
		if vectors[item.Index] != nil {
			return nil, fmt.Errorf("embed: duplicate response index %d", item.Index)
		}
		if c.dim > 0 && len(item.Embedding) != c.dim {
			return nil, fmt.Errorf("embed: dimension at index %d: got %d want %d", item.Index, len(item.Embedding), c.dim)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embed: empty vector at index %d", item.Index)
		}
		copied := make([]float32, len(item.Embedding))
		copy(copied, item.Embedding)
		vectors[item.Index] = copied
	}

	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embed: missing response index %d", i)
		}
	}
	return vectors, nil
}
