package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/dispatch"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/email"
	"github.com/example/liquor-inventory/internal/infrastructure/alertstore"
	"github.com/example/liquor-inventory/internal/infrastructure/kafka"
	"github.com/example/liquor-inventory/internal/metrics"
	"github.com/example/liquor-inventory/internal/notification"
	"github.com/example/liquor-inventory/internal/scanner"
)

func noopClose() error { return nil }

// OpenAlertRepository opens the alert store selected by ALERT_STORE.
// db is only used by the postgres backend.
func OpenAlertRepository(ctx context.Context, cfg *config.Config, db *sql.DB) (alert.Repository, func() error, error) {
	switch cfg.Alerts.Store {
	case config.AlertStorePostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("alert store %q needs a database connection", cfg.Alerts.Store)
		}
		repo := alertstore.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return repo, noopClose, nil
	case config.AlertStoreSQLite:
		repo, err := alertstore.OpenSQLite(ctx, cfg.Alerts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.AlertStoreMemory:
		return alertstore.NewMemoryRepository(), noopClose, nil
	}
	return nil, nil, fmt.Errorf("unsupported alert store %q", cfg.Alerts.Store)
}

// NewAlertDispatcher builds the synchronous problem pipeline: every problem
// becomes an alert for the account owning the warehouse, and is mailed to
// ALERT_EMAIL_TO when SMTP is configured.
func NewAlertDispatcher(cfg *config.Config, directory inventory.WarehouseDirectory, alerts *alert.Service, logger *zap.Logger, m *metrics.Metrics) *dispatch.Dispatcher {
	return newAlertDispatcher(cfg, directory, alert.NewFacade(alerts), logger, m)
}

func newAlertDispatcher(cfg *config.Config, directory inventory.WarehouseDirectory, facade inventory.AlertingFacade, logger *zap.Logger, m *metrics.Metrics) *dispatch.Dispatcher {
	breakerCfg := dispatch.DefaultBreakerConfig("alerting")
	breakerCfg.FailureThreshold = cfg.Alerts.FailureThreshold
	breakerCfg.Timeout = cfg.Alerts.BreakerTimeout

	d := dispatch.NewDispatcher(logger, m)
	d.Register(dispatch.NewAlertHandler(
		directory,
		facade,
		dispatch.NewBreaker(breakerCfg, logger, m),
		cfg.Alerts.Timeout,
		logger,
	))
	if cfg.Notify.Enabled() {
		mailer := email.NewService(cfg.Notify.SMTPHost, cfg.Notify.SMTPPort, cfg.Notify.SMTPFrom)
		d.Register(notification.NewEmailHandler(mailer, cfg.Notify.Recipients, logger))
	}
	return d
}

// NewProblemPublisher returns the publisher for ALERT_DISPATCH_MODE.
// In sync mode problems go straight to local; in kafka mode they are written
// to the problems topic for the alerter.
func NewProblemPublisher(cfg *config.Config, local inventory.ProblemPublisher, logger *zap.Logger) (inventory.ProblemPublisher, func() error) {
	if cfg.Alerts.DispatchMode == config.DispatchKafka {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ProblemsTopic)
		return dispatch.NewKafkaPublisher(producer, logger), producer.Close
	}
	return local, noopClose
}

// NewDeduplicator shares scan claims through Redis when REDIS_ADDR is set and
// keeps them in memory otherwise.
func NewDeduplicator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scanner.Deduplicator, func() error) {
	if cfg.Redis.Addr == "" {
		logger.Info("using in-memory scan deduplication")
		return scanner.NewMemoryDeduplicator(), noopClose
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, scan claims fail open until it is", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return scanner.NewRedisDeduplicator(client, ""), client.Close
}

// ScannerConfig maps the SCANNER_* settings
func ScannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Interval:     cfg.Scanner.Interval,
		InitialDelay: cfg.Scanner.InitialDelay,
		RunTimeout:   cfg.Scanner.RunTimeout,
		DedupTTL:     cfg.Scanner.DedupTTL,
	}
}
