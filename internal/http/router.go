package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/http/handlers"
	"github.com/rentchain/escrow/internal/middleware"
	"go.uber.org/zap"
)

// Guards are the redis-or-memory backed stores the middleware chain needs.
type Guards struct {
	RateCounter middleware.RateCounter
	Idempotency middleware.IdempotencyStore
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	guards Guards,
	authHandler *handlers.AuthHandler,
	paymentHandler *handlers.PaymentHandler,
	accountHandler *handlers.AccountHandler,
	adminHandler *handlers.AdminHandler,
	statsHandler *handlers.StatsHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, Idempotency-Key",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	limit := middleware.RateLimitMiddleware(guards.RateCounter, cfg.RateLimitPerMinute, time.Minute)

	// Auth (public)
	api.Post("/auth/challenge", limit, authHandler.Challenge)
	api.Post("/auth/verify", limit, authHandler.Verify)

	// Read-only public surface
	api.Get("/fees/quote", limit, adminHandler.Quote)
	api.Get("/stats/platform", limit, statsHandler.Platform)
	api.Get("/parties/:address/stats", limit, statsHandler.Party)

	// Protected endpoints
	protected := api.Group("",
		middleware.AuthMiddleware(cfg, log),
		limit,
		middleware.IdempotencyMiddleware(guards.Idempotency, cfg.IdempotencyTTL, log),
	)

	// Payments
	protected.Post("/payments", paymentHandler.CreatePayment)
	protected.Get("/payments", paymentHandler.ListPayments)
	protected.Get("/payments/:id", paymentHandler.GetPayment)
	protected.Post("/payments/:id/settle", paymentHandler.SettlePayment)
	protected.Post("/payments/:id/dispute", paymentHandler.DisputePayment)
	protected.Post("/payments/:id/refund", paymentHandler.RefundPayment)
	protected.Get("/payments/:id/events", paymentHandler.GetPaymentEvents)

	// Account
	protected.Get("/me/account", accountHandler.GetAccount)
	protected.Post("/me/allowance", accountHandler.SetAllowance)

	// Admin
	admin := protected.Group("/admin", middleware.OperatorMiddleware(cfg))
	admin.Post("/fee-rate", adminHandler.SetFeeRate)
	admin.Post("/pause", adminHandler.Pause)
	admin.Post("/unpause", adminHandler.Unpause)
	admin.Post("/deposits", accountHandler.Deposit)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
