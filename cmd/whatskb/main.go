package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glintworks/whatskb/internal/config"
	"github.com/glintworks/whatskb/internal/gateway"
	"github.com/glintworks/whatskb/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "whatskb",
	Short: "whatskb - WhatsApp knowledge-base assistant",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the assistant (WhatsApp + admin HTTP + daily summary)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whatskb status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(gatewayCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w (run 'whatskb onboard' or set the WHATSKB_* environment variables)", err)
	}

	ctx := context.Background()
	gw, err := gateway.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set the model, database, and embedding credentials\n", cfgPath)
	fmt.Println("  2. Or set WHATSKB_API_KEY, WHATSKB_DB_URI, and WHATSKB_EMBEDDING_API_KEY")
	fmt.Println("  3. Run 'whatskb gateway' and scan the QR code to pair WhatsApp")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Company: %s\n", cfg.Bot.CompanyName)
	fmt.Printf("Model: %s\n", cfg.Bot.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Printf("API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Printf("Embedding: model=%s key=%s\n", cfg.Embedding.Model, maskKey(cfg.Embedding.APIKey))
	fmt.Printf("Summary: enabled=%v schedule=%q\n", cfg.Summary.Enabled, cfg.Summary.Schedule)
	fmt.Printf("Telegram alerts: enabled=%v\n", cfg.Alerts.Telegram.Enabled)

	if cfg.Database.URI == "" {
		fmt.Println("Database: not configured")
		return nil
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, cfg.Database.URI, cfg.Embedding.Dimension)
	if err != nil {
		fmt.Printf("Database: unreachable (%v)\n", err)
		return nil
	}
	defer st.Close()

	counts, err := st.TableCounts(ctx)
	if err != nil {
		fmt.Printf("Database: error (%v)\n", err)
		return nil
	}
	fmt.Printf("Database: ok (groups=%d messages=%d kb_topics=%d)\n",
		counts["groups"], counts["messages"], counts["kb_topics"])

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
