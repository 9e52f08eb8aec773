package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nort67/marketbot/internal/cache/redis"
	"github.com/nort67/marketbot/internal/config"
	"github.com/nort67/marketbot/internal/domain"
	"github.com/nort67/marketbot/internal/gateway/telegram"
	"github.com/nort67/marketbot/internal/paygate"
	"github.com/nort67/marketbot/internal/platform/signalsd"
	"github.com/nort67/marketbot/internal/render"
	"github.com/nort67/marketbot/internal/router"
	"github.com/nort67/marketbot/internal/session"
)

// Dependencies bundles everything the running bot needs. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Sessions domain.SessionStore
	Limiter  domain.RateLimiter // nil when no Redis is configured
	Backend  domain.MarketService
	Renderer *render.Renderer
	Gate     *paygate.Gate
	Router   *router.Router
	Gateway  *telegram.Gateway
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Session store: Redis when configured, in-memory otherwise ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := time.Duration(cfg.Redis.SessionTTLMinutes) * time.Minute
		deps.Sessions = redis.NewSessionStore(redisClient, ttl)
		if cfg.Bot.RateLimitPerMin > 0 {
			deps.Limiter = redis.NewRateLimiter(redisClient)
		}
	} else {
		deps.Sessions = session.NewMemoryStore()
		logger.Info("no redis configured, using in-memory session store")
	}

	// --- Backend client ---
	deps.Backend = signalsd.New(signalsd.Config{
		BaseURL:        cfg.Backend.BaseURL,
		ConnectTimeout: cfg.Backend.ConnectTimeout.Duration,
		ReadTimeout:    cfg.Backend.ReadTimeout.Duration,
		SignalsLimit:   cfg.Backend.SignalsLimit,
	})

	// --- Messaging gateway ---
	gw, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.PollTimeoutSec, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: telegram: %w", err)
	}
	deps.Gateway = gw

	// --- Rendering and routing ---
	deps.Renderer = render.New(cfg.Bot.MessageCap)
	deps.Gate = paygate.New(deps.Backend, deps.Sessions, deps.Renderer, logger)
	deps.Router = router.New(deps.Backend, deps.Sessions, deps.Gate, deps.Renderer, logger, router.Options{
		Notifier:   gw,
		Limiter:    deps.Limiter,
		RateLimit:  cfg.Bot.RateLimitPerMin,
		RateWindow: time.Minute,
	})

	return deps, cleanup, nil
}
