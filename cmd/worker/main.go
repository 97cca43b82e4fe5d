package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/db"
	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/repositories"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

// Worker scans for overdue payments and publishes notices on events:notify.
// It shares the ledger with the api, so it needs postgres and redis.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.StorageDriver != config.StoragePostgres || cfg.RedisURL == "" {
		log.Fatal("worker requires STORAGE_DRIVER=postgres and REDIS_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	ledger := repositories.NewPostgresLedger(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	opts := services.Options{Operator: cfg.OperatorAddress, Treasury: cfg.TreasuryAddress}

	// Services
	paymentService := services.NewPaymentService(ledger, publisher, opts, log)
	notifier := services.NewOverdueNotifier(paymentService, repositories.NewRedisMarker(rdb, "notice:overdue:"), publisher, cfg.OverdueNoticeTTL, log)

	log.Info("worker started", zap.Duration("overdue_scan_interval", cfg.OverdueScanInterval))

	interval := cfg.OverdueScanInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	overdueTicker := time.NewTicker(interval)
	defer overdueTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runOverdueScan(ctx, notifier, log)
	for {
		select {
		case <-overdueTicker.C:
			runOverdueScan(ctx, notifier, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runOverdueScan(ctx context.Context, notifier *services.OverdueNotifier, log *zap.Logger) {
	scanCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := notifier.Scan(scanCtx); err != nil {
		log.Error("overdue scan failed", zap.Error(err))
	}
}
