// Package app runs the market engine host: it connects the stores and
// caches, builds the services over the engine, and serves the operator API,
// the event stream, the inactivity keeper and the archive uploader.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/marketengine/internal/config"
)

// App owns one host process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	release func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run blocks until ctx is cancelled or a component fails. Resources stay
// open until Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "market engine host starting",
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("keeper", a.cfg.Keeper.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.mu.Lock()
	a.release = cleanup
	a.mu.Unlock()

	svc := a.buildServices(deps)
	if err := a.bootstrap(ctx, svc, deps); err != nil {
		return err
	}
	return a.runComponents(ctx, svc, deps)
}

// Close releases the connections opened by Run. Later calls do nothing.
func (a *App) Close() {
	a.mu.Lock()
	release := a.release
	a.release = nil
	a.mu.Unlock()

	if release != nil {
		a.logger.Info("releasing host resources")
		release()
	}
}
