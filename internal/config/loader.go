package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETBOT_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the bot can run
// entirely from environment variables. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Telegram ──
	setStr(&cfg.Telegram.Token, "BOT_TOKEN") // compatibility alias
	setStr(&cfg.Telegram.Token, "MARKETBOT_TELEGRAM_TOKEN")
	setStr(&cfg.Telegram.WebAppURL, "WEBAPP_URL") // compatibility alias
	setStr(&cfg.Telegram.WebAppURL, "MARKETBOT_TELEGRAM_WEBAPP_URL")
	setInt(&cfg.Telegram.PollTimeoutSec, "MARKETBOT_TELEGRAM_POLL_TIMEOUT_SEC")

	// ── Backend ──
	setStr(&cfg.Backend.BaseURL, "MARKETBOT_BACKEND_BASE_URL")
	setDuration(&cfg.Backend.ConnectTimeout, "MARKETBOT_BACKEND_CONNECT_TIMEOUT")
	setDuration(&cfg.Backend.ReadTimeout, "MARKETBOT_BACKEND_READ_TIMEOUT")
	setInt(&cfg.Backend.SignalsLimit, "MARKETBOT_BACKEND_SIGNALS_LIMIT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.SessionTTLMinutes, "MARKETBOT_REDIS_SESSION_TTL_MINUTES")

	// ── Bot ──
	setInt(&cfg.Bot.Workers, "MARKETBOT_BOT_WORKERS")
	setInt(&cfg.Bot.QueueSize, "MARKETBOT_BOT_QUEUE_SIZE")
	setInt(&cfg.Bot.MessageCap, "MARKETBOT_BOT_MESSAGE_CAP")
	setInt(&cfg.Bot.RateLimitPerMin, "MARKETBOT_BOT_RATE_LIMIT_PER_MIN")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "MARKETBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
