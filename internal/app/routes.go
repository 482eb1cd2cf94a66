package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/audittrail/internal/lifecycle"
	"github.com/keyxmakerx/audittrail/internal/metrics"
	"github.com/keyxmakerx/audittrail/internal/middleware"
	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

// healthTimeout bounds the database ping of the health check.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
//
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Public Routes (no key required) ---

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", a.health)

	// Prometheus scrape endpoint.
	metrics.RegisterRoutes(e)

	// --- API Routes (ingest key required) ---
	requireKey := middleware.RequireIngestKey(a.Config.Ingest.KeyHash)

	// Log query and retention API.
	audit.RegisterRoutes(e, audit.NewHandler(a.Pipeline.Audit),
		requireKey,
		middleware.RateLimit(a.ctx, a.Config.HTTP.QueryRateLimit, time.Minute),
	)

	// Ingest API. Every request is one scope: notifications in one body
	// share the duplicate guard and pushed state.
	coord := a.Pipeline.Coordinator
	lifecycle.RegisterRoutes(e, lifecycle.NewHandler(coord),
		requireKey,
		middleware.RequestScope(coord.Scope),
	)
}

// health reports whether the log store is reachable.
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if err := a.DB.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}
