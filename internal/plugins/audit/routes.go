package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the log query and retention API. mw guards every
// route; the server passes the ingest key check.
func RegisterRoutes(e *echo.Echo, h *Handler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/api/v1/logs", mw...)

	g.GET("", h.List)
	g.GET("/:id", h.Show)
	g.DELETE("", h.Delete)
}
