package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/db"
	"github.com/rentchain/escrow/internal/events"
	apphttp "github.com/rentchain/escrow/internal/http"
	"github.com/rentchain/escrow/internal/http/handlers"
	"github.com/rentchain/escrow/internal/metrics"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/repositories"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := models.Settings{FeeBps: cfg.PlatformFeeBPS}

	// Ledger
	var ledger repositories.Ledger
	switch cfg.StorageDriver {
	case config.StorageMemory:
		ledger = repositories.NewMemoryLedger(initial)
	default:
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}

		pg := repositories.NewPostgresLedger(pool)
		if err := pg.EnsureSettings(ctx, initial); err != nil {
			log.Fatal("failed to init engine settings", zap.Error(err))
		}
		ledger = pg
	}

	// Redis (optional), без него всё хранится в памяти процесса
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}

	var (
		publisher  events.Publisher
		subscriber events.Subscriber
		nonces     services.NonceStore
		guards     apphttp.Guards
	)
	if rdb != nil {
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
		nonces = repositories.NewRedisNonceStore(rdb)
		guards = apphttp.Guards{
			RateCounter: repositories.NewRedisRateCounter(rdb),
			Idempotency: repositories.NewRedisIdempotencyStore(rdb),
		}
	} else {
		bus := events.NewMemoryBus()
		publisher, subscriber = bus, bus
		nonces = repositories.NewMemoryNonceStore()
		guards = apphttp.Guards{
			RateCounter: repositories.NewMemoryRateCounter(),
			Idempotency: repositories.NewMemoryIdempotencyStore(),
		}
	}

	policy, err := services.ParseRefundPolicy(cfg.RefundPolicy)
	if err != nil {
		log.Fatal("invalid refund policy", zap.Error(err))
	}
	opts := services.Options{
		Operator:     cfg.OperatorAddress,
		Treasury:     cfg.TreasuryAddress,
		RefundPolicy: policy,
	}

	// Services
	paymentService := services.NewPaymentService(ledger, publisher, opts, log)
	arbiter := services.NewArbiter(ledger, publisher, opts, log)
	adminService := services.NewAdminService(ledger, publisher, opts, log)
	accountService := services.NewAccountService(ledger, publisher, opts, log)
	statsService := services.NewStatsService(ledger, opts, log)
	sessionService := services.NewSessionService(nonces, services.SessionConfig{
		JWTSecret:      cfg.JWTSecret,
		JWTExpiration:  cfg.JWTExpiration,
		AllowedDomains: cfg.AuthAllowedDomains,
		ChallengeTTL:   cfg.AuthChallengeTTL,
		Operator:       cfg.OperatorAddress,
	}, log)

	if s, err := adminService.Settings(ctx); err == nil {
		metrics.Escrow().SetPaused(s.Paused)
		log.Info("engine settings", zap.Int("fee_bps", s.FeeBps), zap.Bool("paused", s.Paused))
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(sessionService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, arbiter, nil, log)
	accountHandler := handlers.NewAccountHandler(accountService, log)
	adminHandler := handlers.NewAdminHandler(adminService, log)
	statsHandler := handlers.NewStatsHandler(statsService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, guards, authHandler, paymentHandler, accountHandler, adminHandler, statsHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageDriver))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
