package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WillamesCampos/notification-producer-api/internal/api/producerapi"
	"github.com/WillamesCampos/notification-producer-api/internal/config"
	"github.com/WillamesCampos/notification-producer-api/internal/infrastructure/kafka"
	redisinfra "github.com/WillamesCampos/notification-producer-api/internal/infrastructure/redis"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Kafka publisher. Connect is fatal on retry exhaustion: the API must
	// not accept submissions it cannot publish.
	publisher := kafka.NewPublisher(kafka.ProducerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.Topic,
		ConnectAttempts: cfg.Kafka.PublisherConnectAttempts,
		ConnectDelay:    cfg.Kafka.PublisherConnectDelay,
	}, logger)

	if err := publisher.Connect(ctx); err != nil {
		logger.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Redis (optional, enables the Idempotency-Key middleware)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisinfra.NewClient(ctx, redisinfra.Config{Addr: cfg.Redis.Addr})
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	handlers := producerapi.NewHandlers(publisher, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: producerapi.NewRouter(handlers, redisClient),
	}

	go func() {
		logger.Info("Producer API starting", "port", cfg.HTTP.Port, "topic", cfg.Kafka.Topic)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down producer API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Producer API exiting")
}
