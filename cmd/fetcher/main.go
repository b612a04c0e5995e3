package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/river-alert-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/river-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/river-alert-service/internal/alerts"
	"github.com/couchcryptid/river-alert-service/internal/config"
	"github.com/couchcryptid/river-alert-service/internal/cycle"
	"github.com/couchcryptid/river-alert-service/internal/feed"
	"github.com/couchcryptid/river-alert-service/internal/notify"
	"github.com/couchcryptid/river-alert-service/internal/observability"
	"github.com/couchcryptid/river-alert-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := store.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("redis connection failed", "error", err, "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer rdb.Close()

	stations := store.NewStations(rdb)
	provider := feed.NewClient(cfg.FeedBaseURL, cfg.FeedTimeout, logger)

	// Alert delivery is feature-flagged via TELEGRAM_TOKEN / ALERTS_ENABLED.
	var processor cycle.AlertProcessor
	if cfg.AlertsEnabled {
		sender := notify.NewTelegram(cfg.TelegramToken, cfg.FeedTimeout)
		subscriptions := store.NewSubscriptions(rdb)
		processor = alerts.New(subscriptions, sender, clock, logger, metrics, cfg.Cooldown)
		logger.Info("alert delivery enabled", "cooldown", cfg.Cooldown)
	} else {
		logger.Info("alert delivery disabled")
	}

	// Event publishing is feature-flagged via KAFKA_ENABLED.
	var publisher cycle.EventPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("event publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("event publishing disabled")
	}

	runner := cycle.New(provider, stations, processor, publisher, clock, logger, metrics, cycle.Options{
		Interval:     cfg.FetchInterval,
		CycleTimeout: cfg.CycleTimeout,
		Workers:      cfg.Workers,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, runner, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("runner error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
