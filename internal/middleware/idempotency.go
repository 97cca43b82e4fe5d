package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyStore remembers keys that have already reached the engine.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

// IdempotencyMiddleware rejects a mutating request whose Idempotency-Key was
// already used by the same caller. Requests without the header pass through.
// Failed engine operations leave no trace in the ledger, so the key is
// released on any non-2xx response and the client can retry with it.
func IdempotencyMiddleware(store IdempotencyStore, ttl time.Duration, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" || c.Method() == fiber.MethodGet {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "idempotency key too long", "code": "invalid_idempotency_key"})
		}

		scope := GetCaller(c).String() + ":" + c.Method() + ":" + c.Path()
		ctx := context.Background()
		ok, err := store.Reserve(ctx, scope, key, ttl)
		if err != nil {
			log.Error("idempotency reserve failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "idempotency store unavailable", "code": "unavailable"})
		}
		if !ok {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "duplicate request", "code": "duplicate_request"})
		}

		err = c.Next()
		status := c.Response().StatusCode()
		if err != nil || status >= fiber.StatusBadRequest {
			if rerr := store.Release(ctx, scope, key); rerr != nil {
				log.Warn("idempotency release failed", zap.Error(rerr))
			}
		}
		return err
	}
}
