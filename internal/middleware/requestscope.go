package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the echo context key holding the request id.
const requestIDKey = "request_id"

// maxRequestIDLen bounds client-supplied ids; longer ones are replaced.
const maxRequestIDLen = 128

// ScopeFunc derives the request context. It receives the request id so the
// callee can tag everything done for the request with it.
type ScopeFunc func(ctx context.Context, requestID string) context.Context

// RequestScope returns middleware that assigns each request an id and lets
// fn derive the request's context from it. The id is taken from the
// X-Request-ID header when the caller sends a usable one, otherwise a new
// UUID is generated. It is echoed back in the response header. When an
// outer RequestScope already assigned an id, it is reused.
//
// fn is a callback so this package never imports the pipeline packages that
// own the request scope. A nil fn only assigns the id.
func RequestScope(fn ScopeFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := RequestID(c)
			if id == "" {
				id = strings.TrimSpace(c.Request().Header.Get(RequestIDHeader))
				if id == "" || len(id) > maxRequestIDLen {
					id = uuid.NewString()
				}
				c.Set(requestIDKey, id)
				c.Response().Header().Set(RequestIDHeader, id)
			}

			if fn != nil {
				req := c.Request()
				c.SetRequest(req.WithContext(fn(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// RequestID returns the id assigned by RequestScope, or "".
func RequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}
