// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the posts API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"postapi/config"
	"postapi/internal/observability"
	"postapi/internal/post"
	"postapi/internal/server"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config  *config.Config
	posts   *post.Result
	service *post.Service
	metrics *observability.Metrics
	server  *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig holds the loaded application configuration produced by config.Load.
	AppConfig *config.Config
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	app := &App{
		config: appCfg,
	}

	postResult, err := post.New(ctx, appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize post storage: %w", err)
	}
	app.posts = postResult

	var opts []post.ServiceOption
	if appCfg.Metrics.Enabled {
		app.metrics = observability.NewMetrics()
		opts = append(opts, post.WithObserver(app.metrics))
	}
	app.service = post.NewService(postResult.Store, opts...)

	app.logStartupInfo()

	app.server = server.New(app.service, &server.Config{
		MetricsEnabled:     appCfg.Metrics.Enabled,
		MetricsEndpoint:    appCfg.Metrics.Endpoint,
		Metrics:            app.metrics,
		BodySizeLimit:      appCfg.BodySizeLimitBytes(),
		SwaggerEnabled:     appCfg.Server.SwaggerEnabled,
		CompressionEnabled: appCfg.Server.CompressionEnabled,
	})

	return app, nil
}

// Service returns the post service.
func (a *App) Service() *post.Service {
	return a.service
}

// Handler returns the HTTP handler, for use with httptest.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first (honoring ctx), then the post store and its storage.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.posts != nil {
		if err := a.posts.Close(); err != nil {
			slog.Error("post store close error", "error", err)
			errs = append(errs, fmt.Errorf("post store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)

	if cfg.Server.SwaggerEnabled {
		slog.Info("swagger UI enabled", "path", "/swagger/index.html")
	}
	if cfg.Server.CompressionEnabled {
		slog.Info("response compression enabled", "encodings", "br, gzip")
	}
}
