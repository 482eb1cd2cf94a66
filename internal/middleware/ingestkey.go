package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/audittrail/internal/apperror"
)

// RequireIngestKey returns middleware that requires the shared API key on
// every request. The key is sent as "Authorization: Bearer <key>" or in the
// X-API-Key header and checked against the bcrypt hash from
// INGEST_KEY_HASH. An empty hash disables the check, which config only
// allows outside production.
func RequireIngestKey(hash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if hash == "" {
			return next
		}
		return func(c echo.Context) error {
			key := extractKey(c)
			if key == "" {
				return apperror.NewUnauthorized("API key required")
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				return apperror.NewUnauthorized("invalid API key")
			}
			return next(c)
		}
	}
}

// extractKey reads the API key from the Authorization or X-API-Key header.
func extractKey(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
}
