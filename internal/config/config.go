// Package config defines the top-level configuration for the market analyst
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nort67/marketbot/internal/render"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETBOT_* environment variables.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Backend  BackendConfig  `toml:"backend"`
	Redis    RedisConfig    `toml:"redis"`
	Bot      BotConfig      `toml:"bot"`
	LogLevel string         `toml:"log_level"`
}

// TelegramConfig holds Bot API credentials and polling parameters.
type TelegramConfig struct {
	Token          string `toml:"token"`
	WebAppURL      string `toml:"webapp_url"`
	PollTimeoutSec int    `toml:"poll_timeout_sec"`
}

// BackendConfig holds the signals-engine endpoint and timeouts. The read
// timeout must stay generous: advice calls run an AI agent upstream.
type BackendConfig struct {
	BaseURL        string   `toml:"base_url"`
	ConnectTimeout duration `toml:"connect_timeout"`
	ReadTimeout    duration `toml:"read_timeout"`
	SignalsLimit   int      `toml:"signals_limit"`
}

// RedisConfig holds Redis connection parameters for the session store. An
// empty addr selects the in-memory store instead.
type RedisConfig struct {
	Addr              string `toml:"addr"`
	Password          string `toml:"password"`
	DB                int    `toml:"db"`
	PoolSize          int    `toml:"pool_size"`
	MaxRetries        int    `toml:"max_retries"`
	TLSEnabled        bool   `toml:"tls_enabled"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
}

// BotConfig holds event-processing parameters.
type BotConfig struct {
	Workers         int `toml:"workers"`
	QueueSize       int `toml:"queue_size"`
	MessageCap      int `toml:"message_cap"`
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "60s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "60s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeoutSec: 60,
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			ConnectTimeout: duration{10 * time.Second},
			ReadTimeout:    duration{60 * time.Second},
			SignalsLimit:   20,
		},
		Redis: RedisConfig{
			Addr:              "",
			DB:                0,
			PoolSize:          10,
			MaxRetries:        3,
			TLSEnabled:        false,
			SessionTTLMinutes: 0,
		},
		Bot: BotConfig{
			Workers:         8,
			QueueSize:       64,
			MessageCap:      render.DefaultCap,
			RateLimitPerMin: 20,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Telegram
	if c.Telegram.Token == "" {
		errs = append(errs, "telegram: token must not be empty (set MARKETBOT_TELEGRAM_TOKEN or BOT_TOKEN)")
	}
	if c.Telegram.PollTimeoutSec < 1 || c.Telegram.PollTimeoutSec > 300 {
		errs = append(errs, fmt.Sprintf("telegram: poll_timeout_sec must be 1-300, got %d", c.Telegram.PollTimeoutSec))
	}

	// Backend
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend: base_url must not be empty")
	}
	if c.Backend.ConnectTimeout.Duration <= 0 {
		errs = append(errs, "backend: connect_timeout must be > 0")
	}
	if c.Backend.ReadTimeout.Duration <= c.Backend.ConnectTimeout.Duration {
		errs = append(errs, "backend: read_timeout must exceed connect_timeout (advice calls are slow)")
	}

	// Redis (only checked when a session store address is configured)
	if c.Redis.Addr != "" {
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.SessionTTLMinutes < 0 {
			errs = append(errs, "redis: session_ttl_minutes must be >= 0")
		}
	}

	// Bot
	if c.Bot.Workers < 1 {
		errs = append(errs, "bot: workers must be >= 1")
	}
	if c.Bot.QueueSize < 1 {
		errs = append(errs, "bot: queue_size must be >= 1")
	}
	if c.Bot.MessageCap < render.MinCap || c.Bot.MessageCap > render.HardCap {
		errs = append(errs, fmt.Sprintf("bot: message_cap must be %d-%d, got %d", render.MinCap, render.HardCap, c.Bot.MessageCap))
	}
	if c.Bot.RateLimitPerMin < 0 {
		errs = append(errs, "bot: rate_limit_per_min must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
