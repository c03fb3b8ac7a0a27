package clients

import (
	"garminai/clients/assistantapi"
	"garminai/clients/discord"
	"garminai/clients/notifier"
	"garminai/clients/telegram"
	"garminai/clients/updates"
	"garminai/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Assistant *assistantapi.AssistantApiClient
	Updates   *updates.UpdatesClient
	Discord   *discord.DiscordClient
	Telegram  *telegram.TelegramClient
	Notifier  notifier.Notifier // Combined notifier for all report sinks
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Only enabled sinks join the fan-out
	var sinks []notifier.Notifier
	if discordClient.Enabled() {
		sinks = append(sinks, discordClient)
	}
	if telegramClient.Enabled() {
		sinks = append(sinks, telegramClient)
	}

	return &Clients{
		Logger:    logger,
		Assistant: assistantapi.NewAssistantApiClient(logger, cfg),
		Updates:   updates.NewUpdatesClient(logger, cfg.UpdatesURL()),
		Discord:   discordClient,
		Telegram:  telegramClient,
		Notifier:  notifier.NewMultiNotifier(sinks...),
	}
}

// Close releases the push channel and report sinks.
func (c *Clients) Close() error {
	var lastErr error
	if c.Updates != nil {
		if err := c.Updates.Close(); err != nil {
			lastErr = err
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
