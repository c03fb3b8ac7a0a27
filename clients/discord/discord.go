package discord

import (
	"fmt"
	"garminai/clients/notifier"
	"garminai/config"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Discord embed limits.
const (
	maxDescription = 4096
	maxFieldValue  = 1024
)

// DiscordClient shares analysis reports to a Discord channel.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.ChannelID

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Debug("DISCORD_BOT_TOKEN not set, Discord reports disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	logger.Info("discord reports enabled", zap.String("channelID", channelID))

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
	}
}

// Enabled reports whether reports will be delivered.
func (dc *DiscordClient) Enabled() bool {
	return dc.session != nil && dc.channelID != ""
}

// SendReport sends an embedded analysis report.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendReport(report notifier.Report) {
	if !dc.Enabled() {
		return
	}

	embed := dc.buildReportEmbed(report)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord report",
		zap.String("kind", string(report.Kind)),
		zap.String("subject", report.Subject),
	)
}

func (dc *DiscordClient) buildReportEmbed(report notifier.Report) *discordgo.MessageEmbed {
	color := 0x3498DB // Blue for analyses
	if report.Kind == notifier.ReportKindPushedAnalysis {
		color = 0x9B59B6
	}

	description := report.Body
	if report.Kind == notifier.ReportKindCityAnalysis {
		description = "```json\n" + notifier.Truncate(report.Body, maxDescription-12) + "\n```"
	} else {
		description = notifier.Truncate(description, maxDescription)
	}

	embed := &discordgo.MessageEmbed{
		Title:       notifier.Title(report),
		Description: description,
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Garmin AI Assistant",
		},
	}

	if report.Subject != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Subject",
			Value:  report.Subject,
			Inline: true,
		})
	}

	if len(report.Suggestions) > 0 {
		var sb strings.Builder
		for _, s := range report.Suggestions {
			sb.WriteString(fmt.Sprintf("• %s\n", s))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Suggestions",
			Value: notifier.Truncate(strings.TrimRight(sb.String(), "\n"), maxFieldValue),
		})
	}

	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	embed.Timestamp = ts.Format(time.RFC3339)

	return embed
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
