package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/db"
	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/services"
	"go.uber.org/zap"
)

// Notify Bridge subscribes to payment and notify streams and forwards
// them to NOTIFY_WEBHOOK_URL. Refunds of attested payments arrive with
// reconcile=true for off-platform handling.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.RedisURL == "" || cfg.NotifyWebhookURL == "" {
		log.Fatal("notify-bridge requires REDIS_URL and NOTIFY_WEBHOOK_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	forwarder := services.NewNotifyForwarder(
		services.NewWebhookClient(cfg.NotifyWebhookURL, cfg.NotifyTimeout, log),
		cfg.OperatorAddress,
		log,
	)

	handle := func(event events.Event) {
		fwdCtx, cancel := context.WithTimeout(ctx, cfg.NotifyTimeout+time.Second)
		defer cancel()
		_ = forwarder.Handle(fwdCtx, event)
	}

	for _, stream := range []string{events.StreamPayments, events.StreamNotify} {
		if err := subscriber.Subscribe(ctx, stream, handle); err != nil {
			log.Fatal("failed to subscribe", zap.String("stream", stream), zap.Error(err))
		}
	}

	// Metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9102", mux); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("notify-bridge started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
