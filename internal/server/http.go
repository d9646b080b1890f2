package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"postapi/config"
	"postapi/internal/core"
	"postapi/internal/observability"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled     bool                   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint    string                 // HTTP path for metrics endpoint (default: /metrics)
	Metrics            *observability.Metrics // Optional: shared registry; created when nil and metrics are enabled
	BodySizeLimit      int64                  // Max request body size in bytes (default: 10MB)
	SwaggerEnabled     bool                   // Whether to serve Swagger UI at /swagger/
	CompressionEnabled bool                   // Whether to negotiate br/gzip response encoding
}

// New creates a new HTTP server
func New(posts PostService, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	handler := NewHandler(posts)

	metricsPath := "/metrics"
	if cfg.MetricsEnabled && cfg.MetricsEndpoint != "" {
		// Normalize path to prevent traversal attacks
		metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
	}

	// Global middleware stack (order matters)
	e.Use(RequestIDMiddleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Body size limit (default: 10MB)
	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	if cfg.CompressionEnabled {
		e.Use(CompressionMiddleware(func(c echo.Context) bool {
			// promhttp negotiates its own encoding
			return cfg.MetricsEnabled && c.Request().URL.Path == metricsPath
		}))
	}

	if cfg.MetricsEnabled {
		metrics := cfg.Metrics
		if metrics == nil {
			metrics = observability.NewMetrics()
		}
		e.Use(metrics.Middleware())
		e.GET(metricsPath, echo.WrapHandler(metrics.Handler()))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// API routes
	api := e.Group("/api")
	api.GET("/posts", handler.ListPosts)
	api.POST("/posts", handler.CreatePost)
	api.GET("/posts/:id", handler.ShowPost)
	api.PUT("/posts/:id", handler.UpdatePost)
	api.DELETE("/posts/:id", handler.DeletePost)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// errorHandler renders framework errors (unknown routes, body limit, panics)
// in the same envelope as API errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *core.APIError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		apiErr = &core.APIError{Type: errorTypeForStatus(he.Code), Message: strings.ToLower(msg), StatusCode: he.Code, Err: err}
	default:
		apiErr = core.NewInternalError(err)
	}

	if apiErr.HTTPStatusCode() >= http.StatusInternalServerError {
		slog.Error("unhandled error",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.HTTPStatusCode())
		return
	}
	_ = c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
}

func errorTypeForStatus(code int) core.ErrorType {
	switch {
	case code == http.StatusNotFound:
		return core.ErrorTypeNotFound
	case code >= http.StatusInternalServerError:
		return core.ErrorTypeInternal
	default:
		return core.ErrorTypeInvalidRequest
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
