package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	// RequestIDKey is the fiber locals key under which the request id is stored.
	RequestIDKey = "request_id"
)

// RequestID attaches a stable identifier to every request so log lines and
// ledger audit entries can be correlated. Honors a caller-provided header.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Locals(RequestIDKey, id)
		return c.Next()
	}
}
