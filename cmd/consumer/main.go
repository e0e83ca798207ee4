package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WillamesCampos/notification-producer-api/internal/api/consumerapi"
	"github.com/WillamesCampos/notification-producer-api/internal/config"
	mongoinfra "github.com/WillamesCampos/notification-producer-api/internal/infrastructure/mongo"
	"github.com/WillamesCampos/notification-producer-api/internal/ingest"
	"github.com/WillamesCampos/notification-producer-api/internal/retry"
	"github.com/WillamesCampos/notification-producer-api/internal/store"

	"go.mongodb.org/mongo-driver/mongo"
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

	// MongoDB
	var client *mongo.Client
	err = retry.Do(ctx, retry.Policy{
		Attempts: 5,
		Delay:    2 * time.Second,
		OnAttempt: func(attempt int, err error) {
			logger.Warn("mongo connect attempt failed", "attempt", attempt, "max", 5, "error", err)
		},
	}, func(ctx context.Context) error {
		client, err = mongoinfra.NewClient(ctx, mongoinfra.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		return err
	})
	if err != nil {
		logger.Error("failed to connect to mongo", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
	if err := mongoinfra.EnsureIndexes(ctx, coll); err != nil {
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}
	logger.Info("database initialized", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)

	notifStore := store.NewNotificationStore(coll, logger)

	// Background ingestion. The HTTP server below does not block on it, and
	// keeps serving reads even if the loop fails to connect.
	loop := ingest.NewLoop(ingest.Config{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.Topic,
		GroupID:         cfg.Kafka.GroupID,
		ConnectAttempts: cfg.Kafka.ConsumerConnectAttempts,
		ConnectDelay:    cfg.Kafka.ConsumerConnectDelay,
	}, notifStore, logger)
	loop.Start()

	handlers := consumerapi.NewHandlers(notifStore, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: consumerapi.NewRouter(handlers),
	}

	go func() {
		logger.Info("Notification service starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down notification service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := loop.Stop(shutdownCtx); err != nil {
		logger.Error("ingestion loop did not stop cleanly", "error", err)
	}

	logger.Info("Notification service exiting")
}
