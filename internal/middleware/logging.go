package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v5"
)

// Logging returns middleware that logs request processing time.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()

			err := next(c)

			status := 0
			if res, uerr := echo.UnwrapResponse(c.Response()); uerr == nil {
				status = res.Status
			}
			slog.Debug("request processed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"duration", time.Since(start),
			)
			return err
		}
	}
}
