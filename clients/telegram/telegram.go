package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"garminai/clients/notifier"
	"garminai/config"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// Telegram rejects messages longer than this.
const maxMessageLen = 4096

// TelegramClient shares analysis reports to a Telegram chat.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Debug("TELEGRAM_BOT_KEY not set, Telegram reports disabled")
		return &TelegramClient{
			logger: logger,
			chatID: cfg.Telegram.ChatID,
			apiURL: telegramAPIURL,
		}
	}

	logger.Info("telegram reports enabled", zap.String("chatID", cfg.Telegram.ChatID))

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   cfg.Telegram.ChatID,
		apiURL:   telegramAPIURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether reports will be delivered.
func (tc *TelegramClient) Enabled() bool {
	return tc.botToken != "" && tc.chatID != ""
}

// SendReport sends a report message.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendReport(report notifier.Report) {
	if !tc.Enabled() {
		return
	}

	message := tc.buildReportMessage(report)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram report",
		zap.String("kind", string(report.Kind)),
		zap.String("subject", report.Subject),
	)
}

func (tc *TelegramClient) buildReportMessage(report notifier.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(notifier.Title(report))))
	if report.Subject != "" {
		sb.WriteString(fmt.Sprintf("*Subject:* %s\n", escapeMarkdown(report.Subject)))
	}
	sb.WriteString("\n")

	if report.Kind == notifier.ReportKindCityAnalysis {
		// Backticks inside a code block would end it early.
		sb.WriteString("```\n" + strings.ReplaceAll(report.Body, "`", "'") + "\n```\n")
	} else if report.Body != "" {
		sb.WriteString(escapeMarkdown(report.Body) + "\n")
	}

	if len(report.Suggestions) > 0 {
		sb.WriteString("\n*Suggestions:*\n")
		for _, s := range report.Suggestions {
			sb.WriteString("• " + escapeMarkdown(s) + "\n")
		}
	}

	return notifier.Truncate(sb.String(), maxMessageLen)
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf(tc.apiURL, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
