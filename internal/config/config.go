package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel            = "gpt-4o-mini"
	DefaultTemperature      = 0.7
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 18820
	DefaultBufSize          = 100
	DefaultSearchLimit      = 5
	DefaultInsightCharLimit = 10000
	DefaultSystemPrompt     = "You are a supportive journaling companion. Help the user reflect on their day, their habits, and their goals. Be warm and concise."
)

type Config struct {
	Store    StoreConfig    `json:"store"`
	Provider ProviderConfig `json:"provider"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Voice    VoiceConfig    `json:"voice"`
	Insight  InsightConfig  `json:"insight"`
	Search   SearchConfig   `json:"search"`
}

type StoreConfig struct {
	DBPath        string `json:"dbPath,omitempty"`
	RemindersPath string `json:"remindersPath,omitempty"`
	TranscriptDir string `json:"transcriptDir,omitempty"`
}

type ProviderConfig struct {
	APIKey       string  `json:"apiKey"`
	BaseURL      string  `json:"baseUrl,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type VoiceConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

type InsightConfig struct {
	CharLimit int `json:"charLimit,omitempty"`
}

type SearchConfig struct {
	Limit int `json:"limit,omitempty"`
}

func DefaultConfig() *Config {
	dir := ConfigDir()
	return &Config{
		Store: StoreConfig{
			DBPath:        filepath.Join(dir, "journal.db"),
			RemindersPath: filepath.Join(dir, "reminders.json"),
			TranscriptDir: filepath.Join(dir, "transcripts"),
		},
		Provider: ProviderConfig{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
		},
		Channels: ChannelsConfig{
			WebUI: WebUIConfig{Enabled: true},
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Insight: InsightConfig{CharLimit: DefaultInsightCharLimit},
		Search:  SearchConfig{Limit: DefaultSearchLimit},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".reflective")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("REFLECTIVE_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("REFLECTIVE_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("REFLECTIVE_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if token := os.Getenv("REFLECTIVE_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if dbPath := os.Getenv("REFLECTIVE_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if endpoint := os.Getenv("REFLECTIVE_VOICE_ENDPOINT"); endpoint != "" {
		cfg.Voice.Endpoint = endpoint
		cfg.Voice.Enabled = true
	}
	if limit := os.Getenv("REFLECTIVE_SEARCH_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			cfg.Search.Limit = parsed
		}
	}
	if limit := os.Getenv("REFLECTIVE_INSIGHT_CHAR_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			cfg.Insight.CharLimit = parsed
		}
	}

	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = DefaultConfig().Store.DBPath
	}
	if cfg.Store.RemindersPath == "" {
		cfg.Store.RemindersPath = DefaultConfig().Store.RemindersPath
	}
	if cfg.Store.TranscriptDir == "" {
		cfg.Store.TranscriptDir = DefaultConfig().Store.TranscriptDir
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.Temperature <= 0 {
		cfg.Provider.Temperature = DefaultTemperature
	}
	if cfg.Provider.SystemPrompt == "" {
		cfg.Provider.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = DefaultSearchLimit
	}
	if cfg.Insight.CharLimit <= 0 {
		cfg.Insight.CharLimit = DefaultInsightCharLimit
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
