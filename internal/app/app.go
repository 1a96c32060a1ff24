// Package app provides the top-level application lifecycle for the odds
// gateway. It wires together all dependencies (signal bus, snapshot store,
// upstream feed, correlator, hub, HTTP server, archiver, notifications) and
// runs them under one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sportfeed/oddsgate/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
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

// Run is the main entry point. It wires all dependencies, starts every
// component, and blocks until the context is cancelled or a component fails.
// On return the caller should invoke Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)

	// Broadcast hub.
	g.Go(func() error {
		if err := deps.Hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: hub: %w", err)
		}
		return nil
	})

	// Correlator TTL sweeper.
	g.Go(func() error {
		if err := deps.Correlator.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: correlator: %w", err)
		}
		return nil
	})

	// Upstream feed supervisor (nil when no upstream url is configured).
	// Exhausting the retry budget does not bring the process down: the
	// gateway keeps serving the last snapshots and operators are paged
	// through the status notifier.
	if deps.FeedClient != nil {
		g.Go(func() error {
			err := deps.FeedClient.Run(gctx)
			if err != nil && gctx.Err() == nil {
				a.logger.Error("upstream feed stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// HTTP server.
	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	// Snapshot archiver.
	if deps.Archiver != nil {
		g.Go(func() error {
			if err := deps.Archiver.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: archiver: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
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
