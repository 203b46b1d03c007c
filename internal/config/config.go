package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API       APIConfig       `yaml:"api"`
	Tickers   []string        `yaml:"tickers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Lang           string `yaml:"lang"`
	ModelType      string `yaml:"model_type"`
}

type SchedulerConfig struct {
	Interval         string `yaml:"interval"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type RateLimitConfig struct {
	CallerCooldownSeconds int `yaml:"caller_cooldown_seconds"`
	GlobalLimit           int `yaml:"global_limit"`
	GlobalWindowSeconds   int `yaml:"global_window_seconds"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.API.Lang == "" {
		cfg.API.Lang = "uk"
	}
	if cfg.API.ModelType == "" {
		cfg.API.ModelType = "xgb"
	}
	if cfg.Scheduler.Interval == "" {
		cfg.Scheduler.Interval = "15m"
	}
	if cfg.Scheduler.FetchConcurrency == 0 {
		cfg.Scheduler.FetchConcurrency = 5
	}
	if cfg.RateLimit.CallerCooldownSeconds == 0 {
		cfg.RateLimit.CallerCooldownSeconds = 2
	}
	if cfg.RateLimit.GlobalLimit == 0 {
		cfg.RateLimit.GlobalLimit = 10
	}
	if cfg.RateLimit.GlobalWindowSeconds == 0 {
		cfg.RateLimit.GlobalWindowSeconds = 60
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/cryptomaxa.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}
	for _, t := range c.Tickers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("empty ticker in tickers list")
		}
	}
	if _, err := time.ParseDuration(c.Scheduler.Interval); err != nil {
		return fmt.Errorf("invalid scheduler.interval %q: %w", c.Scheduler.Interval, err)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}

func (c *Config) FetchInterval() time.Duration {
	d, _ := time.ParseDuration(c.Scheduler.Interval)
	return d
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) CallerCooldown() time.Duration {
	return time.Duration(c.RateLimit.CallerCooldownSeconds) * time.Second
}

func (c *Config) GlobalWindow() time.Duration {
	return time.Duration(c.RateLimit.GlobalWindowSeconds) * time.Second
}
