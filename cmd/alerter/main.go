package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/app"
	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/dispatch"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/infrastructure/directory"
	"github.com/example/liquor-inventory/internal/infrastructure/kafka"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/logging"
	"github.com/example/liquor-inventory/internal/metrics"
)

// The alerter consumes the problems topic written in kafka dispatch mode and
// turns each problem into an alert.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.MustLoad()
	logger := logging.Must("alerter", cfg.App.Environment, cfg.App.LogLevel)
	defer logger.Sync()

	groupID := cfg.Kafka.GroupID + "-alerter"
	logger.Info("starting alerter",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.ProblemsTopic),
		zap.String("group_id", groupID),
		zap.String("alert_store", cfg.Alerts.Store),
	)
	if cfg.Alerts.DispatchMode != config.DispatchKafka {
		logger.Warn("ALERT_DISPATCH_MODE is not kafka, producers may not be writing problems to the topic")
	}

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	warehouses := directory.NewPostgres(db)
	if err := warehouses.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate directory", zap.Error(err))
	}

	alertRepo, closeAlerts, err := app.OpenAlertRepository(ctx, cfg, db)
	if err != nil {
		logger.Fatal("failed to open alert store", zap.Error(err))
	}
	defer closeAlerts()

	m := metrics.New(metrics.DefaultConfig())
	dispatcher := app.NewAlertDispatcher(cfg, warehouses, alert.NewService(alertRepo, logger), logger, m)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ProblemsTopic, groupID, logger)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Consume(ctx, dispatch.NewKafkaMessageHandler(dispatcher)); err != nil && ctx.Err() == nil {
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
