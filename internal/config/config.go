package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultModel              = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens          = 4096
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultBufSize            = 100
	DefaultTopK               = 10
	DefaultHistoryLimit       = 7
	DefaultEmbeddingDim       = 1024
	DefaultEmbeddingTimeoutMs = 15000
	// 17:00 UTC daily, matching the evening send window the groups expect.
	DefaultSummarySchedule = "0 0 17 * * *"
)

type Config struct {
	Bot       BotConfig       `json:"bot"`
	Provider  ProviderConfig  `json:"provider"`
	Embedding EmbeddingConfig `json:"embedding"`
	Database  DatabaseConfig  `json:"database"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Gateway   GatewayConfig   `json:"gateway"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Summary   SummaryConfig   `json:"summary"`
	Alerts    AlertsConfig    `json:"alerts"`
}

type BotConfig struct {
	// CompanyName is the organization the assistant represents in prompts.
	CompanyName string `json:"companyName"`
	Workspace   string `json:"workspace"`
	Model       string `json:"model"`
	MaxTokens   int    `json:"maxTokens"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type EmbeddingConfig struct {
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"apiKey"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

type DatabaseConfig struct {
	URI string `json:"uri"`
}

type WhatsAppConfig struct {
	StorePath string   `json:"storePath,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type RetrievalConfig struct {
	TopK         int `json:"topK"`
	HistoryLimit int `json:"historyLimit"`
	// DistanceThreshold filters topics whose cosine distance exceeds it.
	// Zero disables filtering: every retrieved topic is passed to the
	// generator, which decides relevance itself.
	DistanceThreshold float64 `json:"distanceThreshold,omitempty"`
}

type SummaryConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
}

type AlertsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Bot: BotConfig{
			CompanyName: "Glintworks",
			Workspace:   filepath.Join(home, ".whatskb", "workspace"),
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
		},
		Embedding: EmbeddingConfig{
			Dimension: DefaultEmbeddingDim,
			TimeoutMs: DefaultEmbeddingTimeoutMs,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Retrieval: RetrievalConfig{
			TopK:         DefaultTopK,
			HistoryLimit: DefaultHistoryLimit,
		},
		Summary: SummaryConfig{
			Enabled:  false,
			Schedule: DefaultSummarySchedule,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".whatskb")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return loadConfigFrom(ConfigPath())
}

func loadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("WHATSKB_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("WHATSKB_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if uri := os.Getenv("WHATSKB_DB_URI"); uri != "" {
		cfg.Database.URI = uri
	}
	if uri := os.Getenv("DB_URI"); uri != "" && cfg.Database.URI == "" {
		cfg.Database.URI = uri
	}
	if key := os.Getenv("WHATSKB_EMBEDDING_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if url := os.Getenv("WHATSKB_EMBEDDING_BASE_URL"); url != "" {
		cfg.Embedding.BaseURL = url
	}
	if model := os.Getenv("WHATSKB_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}
	if token := os.Getenv("WHATSKB_TELEGRAM_TOKEN"); token != "" {
		cfg.Alerts.Telegram.Token = token
	}
}

func (c *Config) normalize() {
	if c.Bot.Model == "" {
		c.Bot.Model = DefaultModel
	}
	if c.Bot.MaxTokens <= 0 {
		c.Bot.MaxTokens = DefaultMaxTokens
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = DefaultTopK
	}
	if c.Retrieval.HistoryLimit <= 0 {
		c.Retrieval.HistoryLimit = DefaultHistoryLimit
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = DefaultEmbeddingDim
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = DefaultEmbeddingTimeoutMs
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultHost
	}
	if c.Gateway.Port <= 0 {
		c.Gateway.Port = DefaultPort
	}
	if c.Summary.Schedule == "" {
		c.Summary.Schedule = DefaultSummarySchedule
	}
}

// Validate checks everything the gateway needs before it starts connecting.
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("database uri not set (config database.uri or WHATSKB_DB_URI)")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider api key not set (run 'whatskb onboard' or set WHATSKB_API_KEY / ANTHROPIC_API_KEY)")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding api key not set (config embedding.apiKey or WHATSKB_EMBEDDING_API_KEY)")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding model not set (config embedding.model or WHATSKB_EMBEDDING_MODEL)")
	}
	if c.Alerts.Telegram.Enabled && c.Alerts.Telegram.Token == "" {
		return fmt.Errorf("telegram alerts enabled but token not set")
	}
	return nil
}
