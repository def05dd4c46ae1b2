package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const actorHeader = "X-Actor-ID"

// Audit writes one structured log line per request. Money movement endpoints
// are audited with the acting principal when the caller identifies itself.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if id, _ := c.Locals(RequestIDKey).(string); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if actor := c.Get(actorHeader); actor != "" {
			attrs = append(attrs, slog.String("actor", actor))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
