package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/config"
	"github.com/example/liquor-inventory/internal/infrastructure/kinesis"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
	"github.com/example/liquor-inventory/internal/logging"
	"github.com/example/liquor-inventory/internal/projection"
)

var (
	projector *projection.Projector
	logger    *zap.Logger
)

func init() {
	cfg := config.MustLoad()
	logger = logging.Must("lambda-projector", cfg.App.Environment, cfg.App.LogLevel)

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}

	projector = projection.NewProjector(store.NewPostgresReadStore(db), logger)
	logger.Info("initialized")
}

// handler projects a batch of DynamoDB stream records. Records that fail are
// reported back so only they are retried.
func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	records, failures := kinesis.Batch(kinesisEvent)
	for _, f := range failures {
		logger.Warn("failed to decode record", zap.String("sequence_number", f.ItemIdentifier))
	}

	for _, rec := range records {
		if err := projector.Project(ctx, *rec.Event); err != nil {
			logger.Error("failed to project event",
				zap.String("event_id", rec.Event.ID),
				zap.String("event_type", rec.Event.EventType),
				zap.String("aggregate_id", rec.Event.AggregateID),
				zap.Error(err),
			)
			failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: rec.SequenceNumber})
		}
	}

	logger.Info("batch processed",
		zap.Int("records", len(kinesisEvent.Records)),
		zap.Int("failed", len(failures)),
	)
	return events.KinesisEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	defer logger.Sync()
	lambda.Start(handler)
}
