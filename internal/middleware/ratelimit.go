package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateCounter counts hits on a key inside a fixed window.
type RateCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitMiddleware limits per caller when authenticated and per IP
// otherwise.
func RateLimitMiddleware(counter RateCounter, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}

		who := c.IP()
		if caller := GetCaller(c); caller != "" {
			who = caller.String()
		}
		key := fmt.Sprintf("%s:%s", c.Route().Path, who)

		count, err := counter.Hit(context.Background(), key, window)
		if err != nil {
			return c.Next() // fail open
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
				"code":  "rate_limited",
			})
		}

		return c.Next()
	}
}
