package lifecycle

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the ingest API. mw guards every route; the server
// passes the ingest key check and the request scope.
func RegisterRoutes(e *echo.Echo, h *Handler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/api/v1", mw...)

	g.POST("/notifications", h.Notifications)
	g.POST("/auth-events", h.AuthEvents)
}
