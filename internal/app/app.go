// Package app provides the top-level application lifecycle for the market
// analyst bot. It wires together the session store, backend client, payment
// gate, router, and Telegram gateway, then pumps gateway events through the
// dispatcher until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nort67/marketbot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the event dispatcher, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if url := a.cfg.Telegram.WebAppURL; url != "" {
		if err := deps.Gateway.SetMenuWebApp(url); err != nil {
			// The bot is fully usable without the dashboard button.
			a.logger.WarnContext(ctx, "menu button setup failed",
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.InfoContext(ctx, "bot running",
		slog.String("backend", a.cfg.Backend.BaseURL),
		slog.Int("workers", a.cfg.Bot.Workers),
	)

	events := deps.Gateway.Events(ctx)
	dispatcher := NewDispatcher(deps.Router, deps.Gateway, a.cfg.Bot.Workers, a.cfg.Bot.QueueSize, a.logger)
	return dispatcher.Run(ctx, events)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
