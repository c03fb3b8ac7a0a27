package clients

import (
	"garminai/clients/notifier"
	"garminai/config"
	"testing"

	"go.uber.org/zap"
)

func TestNewClients(t *testing.T) {
	cfg := config.Defaults()
	cfg.API.BaseURL = "https://assistant.example.com"

	logger := zap.NewNop()
	clients := NewClients(logger, cfg)

	if clients.Logger != logger {
		t.Error("unexpected logger")
	}
	if clients.Assistant == nil {
		t.Error("expected Assistant client to be set")
	}
	if clients.Updates == nil {
		t.Error("expected Updates client to be set")
	}
	if clients.Discord == nil || clients.Telegram == nil {
		t.Error("expected sink clients to be set")
	}

	mn, ok := clients.Notifier.(*notifier.MultiNotifier)
	if !ok {
		t.Fatalf("expected MultiNotifier, got %T", clients.Notifier)
	}
	if mn.Count() != 0 {
		t.Errorf("expected no active sinks without credentials, got %d", mn.Count())
	}
}

func TestNewClients_WithSinks(t *testing.T) {
	cfg := config.Defaults()
	cfg.Discord = config.DiscordConfig{BotToken: "token", ChannelID: "chan"}
	cfg.Telegram = config.TelegramConfig{BotToken: "token", ChatID: "chat"}

	clients := NewClients(zap.NewNop(), cfg)

	mn := clients.Notifier.(*notifier.MultiNotifier)
	if mn.Count() != 2 {
		t.Errorf("expected 2 active sinks, got %d", mn.Count())
	}
}

func TestNewClients_NilLogger(t *testing.T) {
	clients := NewClients(nil, config.Defaults())

	if clients.Logger != nil {
		t.Error("expected nil logger to remain nil")
	}
	if clients.Assistant == nil {
		t.Error("expected Assistant client to be set")
	}
}

func TestClients_Close(t *testing.T) {
	clients := NewClients(zap.NewNop(), config.Defaults())

	if err := clients.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
