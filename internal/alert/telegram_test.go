package alert

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glintworks/whatskb/internal/config"
)

type mockBot struct {
	sent    []tgbotapi.Chattable
	sendErr error
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, m.sendErr
}

func (m *mockBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "whatskb_alerts_bot"}
}

func mockFactory(bot *mockBot) BotFactory {
	return func(string) (TelegramBot, error) { return bot, nil }
}

func TestNotifySendsToConfiguredChat(t *testing.T) {
	bot := &mockBot{}
	n, err := NewTelegramNotifierWithFactory(config.TelegramConfig{Token: "tok", ChatID: 42}, mockFactory(bot))
	if err != nil {
		t.Fatalf("NewTelegramNotifierWithFactory() error = %v", err)
	}

	if err := n.Notify(context.Background(), "spam detected"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want tgbotapi.MessageConfig", bot.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "spam detected" {
		t.Errorf("sent chat=%d text=%q, want chat=42 text=%q", msg.ChatID, msg.Text, "spam detected")
	}
}

func TestNotifySendError(t *testing.T) {
	bot := &mockBot{sendErr: errors.New("forbidden")}
	n, err := NewTelegramNotifierWithFactory(config.TelegramConfig{Token: "tok", ChatID: 42}, mockFactory(bot))
	if err != nil {
		t.Fatalf("NewTelegramNotifierWithFactory() error = %v", err)
	}
	if err := n.Notify(context.Background(), "x"); err == nil {
		t.Error("Notify() succeeded, want send error")
	}
}

func TestNotifierRequiresConfig(t *testing.T) {
	if _, err := NewTelegramNotifierWithFactory(config.TelegramConfig{ChatID: 42}, mockFactory(&mockBot{})); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := NewTelegramNotifierWithFactory(config.TelegramConfig{Token: "tok"}, mockFactory(&mockBot{})); err == nil {
		t.Error("missing chat id accepted")
	}
}
