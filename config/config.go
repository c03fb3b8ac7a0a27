package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Assistant service
	API APIConfig `json:"api"`

	// Push channel
	Updates UpdatesConfig `json:"updates"`

	// Fixed analysis conditions sent with every city analysis
	Analysis AnalysisConfig `json:"analysis"`

	// Report sinks
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`

	// Local status server
	StatusServer StatusServerConfig `json:"status_server"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig holds the assistant service configuration.
type APIConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// UpdatesConfig holds the push channel configuration.
type UpdatesConfig struct {
	// URL overrides the address derived from API.BaseURL.
	URL string `json:"url"`
}

// AnalysisConfig holds the conditions attached to city analysis requests
// and the default insight type for activity insights.
type AnalysisConfig struct {
	Location    string `json:"location"`
	Weather     string `json:"weather"`
	Time        string `json:"time"`
	InsightType string `json:"insight_type"`
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken  string `json:"-"` // Excluded - env var only
	ChannelID string `json:"channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken string `json:"-"` // Excluded - env var only
	ChatID   string `json:"chat_id"`
}

// StatusServerConfig holds the local status server configuration.
type StatusServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Development bool   `json:"development"`
	File        string `json:"file"`
}

// UpdatesURL returns the push channel address. An explicit override wins;
// otherwise the scheme of the API base URL is mapped to ws/wss and the path
// is set to /ws/updates.
func (c *Config) UpdatesURL() string {
	if c.Updates.URL != "" {
		return c.Updates.URL
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/updates"
	u.RawQuery = ""
	return u.String()
}

// ToJSON serializes the config to JSON. Bot tokens are never included.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5001",
			Timeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			Location:    "台北市",
			Weather:     "晴天",
			Time:        "早晨",
			InsightType: "general",
		},
		StatusServer: StatusServerConfig{
			Enabled: false,
			Port:    9090,
		},
		Log: LogConfig{
			File: "garminai.log",
		},
	}
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	d := Defaults()
	return &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envString("API_BASE_URL", d.API.BaseURL), "/"),
			Timeout: envDuration("API_TIMEOUT", d.API.Timeout),
		},

		Updates: UpdatesConfig{
			URL: envString("UPDATES_WS_URL", ""),
		},

		Analysis: AnalysisConfig{
			Location:    envString("ANALYSIS_LOCATION", d.Analysis.Location),
			Weather:     envString("ANALYSIS_WEATHER", d.Analysis.Weather),
			Time:        envString("ANALYSIS_TIME", d.Analysis.Time),
			InsightType: envString("INSIGHT_TYPE", d.Analysis.InsightType),
		},

		Discord: DiscordConfig{
			BotToken:  envString("DISCORD_BOT_TOKEN", ""),
			ChannelID: envString("DISCORD_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken: envString("TELEGRAM_BOT_KEY", ""),
			ChatID:   envString("TELEGRAM_CHAT_ID", ""),
		},

		StatusServer: StatusServerConfig{
			Enabled: envBoolDefault("STATUS_SERVER_ENABLED", d.StatusServer.Enabled),
			Port:    envInt("STATUS_SERVER_PORT", d.StatusServer.Port),
		},

		Log: LogConfig{
			Development: envBoolDefault("LOG_DEV", false),
			File:        envString("LOG_FILE", d.Log.File),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
