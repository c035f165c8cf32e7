package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/foodbuzz/pkg/dedupe"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

// History backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// File names inside the data directory.
const (
	RawMentionsFile = "mentions_raw.jsonl"
	CleanFile       = "mentions_clean.csv"
	EnhancedFile    = "mentions_enhanced.csv"
	MoversFile      = "movers.csv"
	HistoryDirName  = "history"
	LockFile        = ".foodbuzz.lock"
	DatabaseFile    = "foodbuzz.db"
)

// Config is the root configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir" env:"FOODBUZZ_DATA_DIR"`
	Log      LogConfig      `yaml:"log"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	History  HistoryConfig  `yaml:"history"`
	Database DatabaseConfig `yaml:"database"`
	Movers   MoversConfig   `yaml:"movers"`
	Forecast ForecastConfig `yaml:"forecast"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Lock     LockConfig     `yaml:"lock"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
	Level       string `yaml:"level" env:"LOG_LEVEL"`
}

// DedupeConfig holds the clustering threshold and the recency half-life.
type DedupeConfig struct {
	MinSimilarity     int `yaml:"min_similarity" env:"FOODBUZZ_MIN_SIMILARITY"`
	DecayHalfLifeDays int `yaml:"decay_half_life_days" env:"FOODBUZZ_HALF_LIFE_DAYS"`
}

// HistoryConfig selects where weekly snapshots live.
type HistoryConfig struct {
	Backend string `yaml:"backend" env:"FOODBUZZ_HISTORY_BACKEND"` // "csv" or "sqlite"
	Dir     string `yaml:"dir" env:"FOODBUZZ_HISTORY_DIR"`         // defaults to <data_dir>/history
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"FOODBUZZ_DB_PATH"` // defaults to <data_dir>/foodbuzz.db
}

// MoversConfig configures the movers table.
type MoversConfig struct {
	Limit    int `yaml:"limit" env:"FOODBUZZ_MOVERS_LIMIT"`
	AlertTop int `yaml:"alert_top" env:"FOODBUZZ_MOVERS_ALERT_TOP"` // movers included in notifications
}

// ForecastConfig configures the weekly mention volume forecast.
type ForecastConfig struct {
	Window  int `yaml:"window" env:"FOODBUZZ_FORECAST_WINDOW"`   // moving-average weeks
	Horizon int `yaml:"horizon" env:"FOODBUZZ_FORECAST_HORIZON"` // projected weeks
}

// ScheduleConfig configures the daemon interval.
type ScheduleConfig struct {
	Interval string `yaml:"interval" env:"FOODBUZZ_SCHEDULE_INTERVAL"`
}

// ParseInterval returns the interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// LockConfig configures the data directory lock.
type LockConfig struct {
	StaleAfter string `yaml:"stale_after" env:"FOODBUZZ_LOCK_STALE_AFTER"`
}

// ParseStaleAfter returns the lock TTL as time.Duration.
func (l LockConfig) ParseStaleAfter() time.Duration {
	d, err := time.ParseDuration(l.StaleAfter)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" env:"SLACK_WEBHOOK_URL"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" env:"DISCORD_WEBHOOK_URL"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" env:"FOODBUZZ_WEBHOOK_URL"`
	Secret  string `yaml:"secret" env:"FOODBUZZ_WEBHOOK_SECRET"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" env:"FOODBUZZ_PORT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Log: LogConfig{
			Environment: "local",
			Level:       "info",
		},
		Dedupe: DedupeConfig{
			MinSimilarity:     dedupe.DefaultThreshold,
			DecayHalfLifeDays: trend.DefaultHalfLifeDays,
		},
		History:  HistoryConfig{Backend: BackendCSV},
		Movers:   MoversConfig{Limit: trend.DefaultMoversLimit, AlertTop: 5},
		Forecast: ForecastConfig{Window: trend.DefaultForecastWindow, Horizon: trend.DefaultForecastHorizon},
		Schedule: ScheduleConfig{Interval: "168h"},
		Lock:     LockConfig{StaleAfter: "1h"},
		Server:   ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables. A
// webhook URL supplied through the environment also enables its notifier.
func applyEnvOverrides(cfg *Config) error {
	slack, discord, webhook := cfg.Alerts.Slack.WebhookURL, cfg.Alerts.Discord.WebhookURL, cfg.Alerts.Webhook.URL

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment config: %w", err)
	}

	if cfg.Alerts.Slack.WebhookURL != slack {
		cfg.Alerts.Slack.Enabled = true
	}
	if cfg.Alerts.Discord.WebhookURL != discord {
		cfg.Alerts.Discord.Enabled = true
	}
	if cfg.Alerts.Webhook.URL != webhook {
		cfg.Alerts.Webhook.Enabled = true
	}
	return nil
}

// Normalize clamps out-of-range values instead of failing and returns a
// description of every adjustment it made.
func (c *Config) Normalize() []string {
	var fixes []string

	if c.Dedupe.DecayHalfLifeDays < 1 {
		fixes = append(fixes, fmt.Sprintf("decay_half_life_days %d raised to 1", c.Dedupe.DecayHalfLifeDays))
		c.Dedupe.DecayHalfLifeDays = 1
	}
	if c.Dedupe.MinSimilarity < 0 {
		fixes = append(fixes, fmt.Sprintf("min_similarity %d raised to 0", c.Dedupe.MinSimilarity))
		c.Dedupe.MinSimilarity = 0
	}
	if c.Dedupe.MinSimilarity > 100 {
		fixes = append(fixes, fmt.Sprintf("min_similarity %d lowered to 100", c.Dedupe.MinSimilarity))
		c.Dedupe.MinSimilarity = 100
	}
	if c.Movers.Limit <= 0 {
		fixes = append(fixes, fmt.Sprintf("movers limit %d replaced by %d", c.Movers.Limit, trend.DefaultMoversLimit))
		c.Movers.Limit = trend.DefaultMoversLimit
	}
	if c.Movers.AlertTop < 0 {
		c.Movers.AlertTop = 0
	}
	if c.Forecast.Window <= 0 {
		fixes = append(fixes, fmt.Sprintf("forecast window %d replaced by %d", c.Forecast.Window, trend.DefaultForecastWindow))
		c.Forecast.Window = trend.DefaultForecastWindow
	}
	if c.Forecast.Horizon < 0 {
		fixes = append(fixes, fmt.Sprintf("forecast horizon %d raised to 0", c.Forecast.Horizon))
		c.Forecast.Horizon = 0
	}

	backend := strings.ToLower(strings.TrimSpace(c.History.Backend))
	switch backend {
	case BackendCSV, BackendSQLite:
	default:
		fixes = append(fixes, fmt.Sprintf("unknown history backend %q, using %s", c.History.Backend, BackendCSV))
		backend = BackendCSV
	}
	c.History.Backend = backend

	if strings.TrimSpace(c.DataDir) == "" {
		fixes = append(fixes, "empty data_dir replaced by current directory")
		c.DataDir = "."
	}
	return fixes
}

// RawMentionsPath is the JSONL file produced by the collectors.
func (c *Config) RawMentionsPath() string {
	return filepath.Join(c.DataDir, RawMentionsFile)
}

// CleanPath is the canonical entity table.
func (c *Config) CleanPath() string {
	return filepath.Join(c.DataDir, CleanFile)
}

// EnhancedPath is the canonical table after downstream enrichment.
func (c *Config) EnhancedPath() string {
	return filepath.Join(c.DataDir, EnhancedFile)
}

func (c *Config) MoversPath() string {
	return filepath.Join(c.DataDir, MoversFile)
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, LockFile)
}

// HistoryDir is where CSV snapshots are kept.
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	return filepath.Join(c.DataDir, HistoryDirName)
}

// DatabasePath is the SQLite file.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, DatabaseFile)
}
