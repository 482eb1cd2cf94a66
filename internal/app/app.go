// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance), builds the audit pipeline and registers every route.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/audittrail/internal/apperror"
	"github.com/keyxmakerx/audittrail/internal/config"
	"github.com/keyxmakerx/audittrail/internal/middleware"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the audit log database shared by the repository and migrations.
	DB *sql.DB

	// Redis is optional. It backs cross-request snapshots and the
	// notification channel when configured.
	Redis *redis.Client

	// Pipeline is the wired audit pipeline.
	Pipeline *Pipeline

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// ctx bounds background work started for the server, such as the
	// rate limiter's sweeper.
	ctx context.Context
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling. ctx bounds the
// background goroutines owned by middleware.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	pipeline, err := NewPipeline(cfg, db, rdb, nil)
	if err != nil {
		return nil, err
	}

	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP.
	middleware.TrustedProxies(e, cfg.HTTP.TrustedProxies)

	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Pipeline: pipeline,
		Echo:     e,
		ctx:      ctx,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request id -- assigned before logging so every request line carries it.
	a.Echo.Use(middleware.RequestScope(nil))

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- only for dashboards reading the query API from another origin.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: a.Config.HTTP.CORSOrigins,
	}))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) and Echo's own HTTP errors to JSON responses. The service has
// no HTML surface, so every error is JSON.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	errType := apperror.TypeInternal
	message := defaultErrorMessage(code)

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = apperror.SafeCode(err)
		errType = appErr.Type
		message = apperror.SafeMessage(err)

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.RequestID(c)),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in HTTP errors (e.g., 404 from router).
		code = echoErr.Code
		errType = errorType(code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		// Truly unexpected error -- log it.
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
			slog.String("request_id", middleware.RequestID(c)),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{
		"error":   errType,
		"message": message,
	})
}

// errorType returns the machine-readable type for a bare status code.
func errorType(code int) string {
	switch code {
	case http.StatusBadRequest:
		return apperror.TypeBadRequest
	case http.StatusUnauthorized:
		return apperror.TypeUnauthorized
	case http.StatusNotFound:
		return apperror.TypeNotFound
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if code >= 500 {
			return apperror.TypeInternal
		}
		return "error"
	}
}

// defaultErrorMessage returns a client-safe message for common HTTP status
// codes when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "A valid API key is required."
	case http.StatusNotFound:
		return "The requested resource does not exist."
	case http.StatusMethodNotAllowed:
		return "This method is not allowed."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusTooManyRequests:
		return "Too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting audit trail server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("db_driver", a.Config.Database.Driver),
		slog.String("snapshot_backend", a.Config.Snapshot.Backend),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops the HTTP server, waiting for in-flight requests until ctx
// expires.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}
