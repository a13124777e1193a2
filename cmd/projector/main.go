package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/infrastructure/kafka"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/logging"
	"github.com/example/liquor-inventory/internal/projection"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.MustLoad()
	logger := logging.Must("projector", cfg.App.Environment, cfg.App.LogLevel)
	defer logger.Sync()

	groupID := cfg.Kafka.GroupID + "-projector"
	logger.Info("starting projector",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.EventsTopic),
		zap.String("group_id", groupID),
	)

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	readStore := store.NewPostgresReadStore(db)
	if err := readStore.Migrate(); err != nil {
		logger.Fatal("failed to migrate read store", zap.Error(err))
	}
	projector := projection.NewProjector(readStore, logger)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, groupID, logger)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	logger.Info("shutting down")
	cancel()
	<-done
}
