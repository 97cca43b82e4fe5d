package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/auth"
	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"go.uber.org/zap"
)

const (
	CtxCaller = "caller"
	CtxRole   = "role"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header", "code": "unauthenticated"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format", "code": "unauthenticated"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token", "code": "unauthenticated"})
		}

		c.Locals(CtxCaller, claims.Address)
		c.Locals(CtxRole, claims.Role)

		return c.Next()
	}
}

// GetCaller returns the authenticated address, or "" on public routes.
func GetCaller(c *fiber.Ctx) models.Address {
	addr, _ := c.Locals(CtxCaller).(models.Address)
	return addr
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// OperatorMiddleware short-circuits admin routes for non-operators. The
// engine checks the caller again, the token role is not trusted on its own.
func OperatorMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetCaller(c) != cfg.OperatorAddress || GetRole(c) != rbac.RoleOperator {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "operator access required", "code": "unauthorized"})
		}
		return c.Next()
	}
}
