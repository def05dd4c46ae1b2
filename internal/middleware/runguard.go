package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const runGuardTTL = 10 * time.Minute

// RunGuard serializes a long-running operation across instances by holding a
// Redis marker for the duration of the request. Without Redis it is a no-op;
// the operation is still safe to overlap, just wasteful.
func RunGuard(cache *redis.Client, name string) fiber.Handler {
	key := "runguard:" + name
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		ok, err := cache.SetNX(c.UserContext(), key, "1", runGuardTTL).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, name+" already in progress")
		}
		defer cache.Del(c.UserContext(), key)
		return c.Next()
	}
}
