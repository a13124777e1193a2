package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/api"
	"github.com/example/liquor-inventory/internal/app"
	"github.com/example/liquor-inventory/internal/auth"
	"github.com/example/liquor-inventory/internal/command"
	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/domain/alert"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/directory"
	"github.com/example/liquor-inventory/internal/infrastructure/kafka"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/logging"
	"github.com/example/liquor-inventory/internal/metrics"
	"github.com/example/liquor-inventory/internal/projection"
	"github.com/example/liquor-inventory/internal/query"
	"github.com/example/liquor-inventory/internal/scanner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.MustLoad()
	logger := logging.Must("api", cfg.App.Environment, cfg.App.LogLevel)
	defer logger.Sync()

	if err := cfg.RequireJWTSecret(); err != nil {
		logger.Fatal("invalid auth configuration", zap.Error(err))
	}

	logger.Info("starting inventory api",
		zap.String("event_store", cfg.Database.EventStore),
		zap.String("alert_store", cfg.Alerts.Store),
		zap.String("dispatch_mode", cfg.Alerts.DispatchMode),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
	)

	m := metrics.New(metrics.DefaultConfig())

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	warehouses := directory.NewPostgres(db)
	if err := warehouses.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate directory", zap.Error(err))
	}

	// Read side
	var readStore store.ReadStoreInterface
	if cfg.Database.EventStore == config.EventStoreMemory {
		readStore = store.NewReadStore()
	} else {
		pgReadStore := store.NewPostgresReadStore(db)
		if err := pgReadStore.Migrate(); err != nil {
			logger.Fatal("failed to migrate read store", zap.Error(err))
		}
		readStore = pgReadStore
	}
	projector := projection.NewProjector(readStore, logger)

	// Write side
	eventStore, closeEvents := openEventStore(ctx, cfg, db, projector, logger)
	defer closeEvents()

	// Alerting
	alertRepo, closeAlerts, err := app.OpenAlertRepository(ctx, cfg, db)
	if err != nil {
		logger.Fatal("failed to open alert store", zap.Error(err))
	}
	defer closeAlerts()
	alertSvc := alert.NewService(alertRepo, logger)

	var local inventory.ProblemPublisher
	if cfg.Alerts.DispatchMode == config.DispatchSync {
		local = app.NewAlertDispatcher(cfg, warehouses, alertSvc, logger, m)
	}
	problems, closeProblems := app.NewProblemPublisher(cfg, local, logger)
	defer closeProblems()

	inventorySvc := inventory.NewService(eventStore, warehouses, warehouses, problems, logger, inventory.WithMetrics(m))

	cmdHandler := command.NewHandler(inventorySvc, alertSvc)
	queryHandler := query.NewHandler(readStore, alertSvc, logger)

	replayEvents(ctx, eventStore, projector, logger)

	var wg sync.WaitGroup
	if cfg.Database.EventStore == config.EventStorePostgres {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.GroupID+"-api-projector", logger)
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("starting projection consumer", zap.String("topic", cfg.Kafka.EventsTopic))
			if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Error("projection consumer stopped", zap.Error(err))
			}
		}()
	}

	dedup, closeDedup := app.NewDeduplicator(ctx, cfg, logger)
	defer closeDedup()
	expirationScanner := scanner.New(queryHandler, problems, logger, app.ScannerConfig(cfg),
		scanner.WithDeduplicator(dedup),
		scanner.WithMetrics(m),
	)
	if cfg.Scanner.Enabled {
		if err := expirationScanner.Start(); err != nil {
			logger.Fatal("failed to start scanner", zap.Error(err))
		}
		defer expirationScanner.Stop()
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	handlers := api.NewHandlers(cmdHandler, queryHandler, expirationScanner, logger)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		JWTService:     jwtService,
		Metrics:        m,
		Logger:         logger,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	wg.Wait()
}

// openEventStore selects the ledger backend. Postgres forwards every event to
// Kafka; DynamoDB relies on its Kinesis stream; the in-memory store projects
// synchronously.
func openEventStore(ctx context.Context, cfg *config.Config, db *sql.DB, projector *projection.Projector, logger *zap.Logger) (store.EventStoreInterface, func() error) {
	switch cfg.Database.EventStore {
	case config.EventStoreDynamo:
		client, err := store.NewDynamoClient(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
		if err != nil {
			logger.Fatal("failed to create DynamoDB client", zap.Error(err))
		}
		logger.Info("using DynamoDB event store", zap.String("table", cfg.Dynamo.EventsTable))
		return store.NewDynamoEventStore(client, cfg.Dynamo.EventsTable, cfg.Dynamo.SnapshotTable), func() error { return nil }
	case config.EventStoreMemory:
		logger.Warn("using in-memory event store, the ledger is lost on restart")
		return store.NewEventStore(projector), func() error { return nil }
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	eventStore := store.NewPostgresEventStore(db, producer)
	if err := eventStore.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate event store", zap.Error(err))
	}
	return eventStore, producer.Close
}

// replayEvents rebuilds the read models from the full ledger
func replayEvents(ctx context.Context, eventStore store.EventStoreInterface, projector *projection.Projector, logger *zap.Logger) {
	start := time.Now()
	events, err := eventStore.GetAllEvents(ctx)
	if err != nil {
		logger.Error("failed to load events for replay", zap.Error(err))
		return
	}

	failed := 0
	for _, event := range events {
		if err := projector.Project(ctx, event); err != nil {
			failed++
			logger.Warn("failed to replay event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	logger.Info("event replay completed",
		zap.Int("events", len(events)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)),
	)
}
