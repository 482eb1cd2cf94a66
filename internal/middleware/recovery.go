package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/audittrail/internal/apperror"
)

// Recovery turns a panic in a handler into a logged internal error. The
// response goes through the app's error handler like any other failure, so
// a caller sees the same JSON body as for a storage error.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				req := c.Request()
				slog.Error("handler panicked",
					slog.Any("panic", r),
					slog.String("method", req.Method),
					slog.String("route", c.Path()),
					slog.String("request_id", RequestID(c)),
					slog.String("stack", string(debug.Stack())),
				)
				err = apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", req.Method, c.Path(), r))
			}()
			return next(c)
		}
	}
}
