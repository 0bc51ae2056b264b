package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelproxy/messages-bridge/internal/bridge"
	"github.com/kestrelproxy/messages-bridge/internal/httpapi"
	"github.com/kestrelproxy/messages-bridge/internal/metrics"
	"github.com/kestrelproxy/messages-bridge/internal/upstream"
)

// App orchestrates the lifecycle of the HTTP front end and its dependencies.
type App struct {
	cfg    *Config
	server *httpapi.Server
}

// New creates a new App instance, wiring the upstream client, the C1-C6
// dispatcher, and the metrics recorder behind the HTTP front end.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := upstream.New(cfg.Upstream.BaseURL)
	recorder := metrics.New(!cfg.Metrics.Disabled)
	dispatcher := bridge.New(client, cfg.ModelOverrides, cfg.Upstream.DefaultModel, recorder)

	server := httpapi.New(dispatcher, recorder, slog.Default())

	return &App{
		cfg:    cfg,
		server: server,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting http front end", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("http front end startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "http front end runtime error", "error", err)
				return fmt.Errorf("http front end: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
