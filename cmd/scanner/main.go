package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/app"
	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/directory"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/logging"
	"github.com/example/liquor-inventory/internal/metrics"
	"github.com/example/liquor-inventory/internal/query"
	"github.com/example/liquor-inventory/internal/scanner"
)

// The scanner runs the expiration scan on its own schedule over the projected
// read models.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.MustLoad()
	logger := logging.Must("scanner", cfg.App.Environment, cfg.App.LogLevel)
	defer logger.Sync()

	logger.Info("starting expiration scanner",
		zap.Duration("interval", cfg.Scanner.Interval),
		zap.String("dispatch_mode", cfg.Alerts.DispatchMode),
		zap.Bool("redis_dedup", cfg.Redis.Addr != ""),
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

	m := metrics.New(metrics.DefaultConfig())

	var local inventory.ProblemPublisher
	if cfg.Alerts.DispatchMode == config.DispatchSync {
		warehouses := directory.NewPostgres(db)
		if err := warehouses.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate directory", zap.Error(err))
		}
		alertRepo, closeAlerts, err := app.OpenAlertRepository(ctx, cfg, db)
		if err != nil {
			logger.Fatal("failed to open alert store", zap.Error(err))
		}
		defer closeAlerts()
		local = app.NewAlertDispatcher(cfg, warehouses, alert.NewService(alertRepo, logger), logger, m)
	}
	problems, closeProblems := app.NewProblemPublisher(cfg, local, logger)
	defer closeProblems()

	dedup, closeDedup := app.NewDeduplicator(ctx, cfg, logger)
	defer closeDedup()

	source := query.NewHandler(readStore, nil, logger)
	s := scanner.New(source, problems, logger, app.ScannerConfig(cfg),
		scanner.WithDeduplicator(dedup),
		scanner.WithMetrics(m),
	)
	if err := s.Start(); err != nil {
		logger.Fatal("failed to start scanner", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	s.Stop()
}
