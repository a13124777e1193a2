package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/infrastructure/kafka"
	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

// KafkaPublisher is the asynchronous ProblemPublisher: problems are written to
// a topic and delivered by the alerter process. A failed write loses the
// problem, it is logged.
type KafkaPublisher struct {
	producer store.EventPublisher
	logger   *zap.Logger
}

func NewKafkaPublisher(producer store.EventPublisher, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		producer: producer,
		logger:   logger.With(zap.String("component", "kafka_problem_publisher")),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, problem inventory.ProblemDetected) {
	key := inventory.RecordID(problem.ProductID, problem.WarehouseID)
	if err := p.producer.Publish(context.WithoutCancel(ctx), key, problem); err != nil {
		p.logger.Error("failed to publish problem",
			zap.String("key", key),
			zap.String("type", string(problem.Type)),
			zap.String("severity", string(problem.Severity)),
			zap.Error(err),
		)
	}
}

// NewKafkaMessageHandler decodes problems from the topic and dispatches them
func NewKafkaMessageHandler(publisher inventory.ProblemPublisher) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		var problem inventory.ProblemDetected
		if err := json.Unmarshal(value, &problem); err != nil {
			return fmt.Errorf("failed to decode problem %s: %w", key, err)
		}
		if problem.ProductID <= 0 || problem.WarehouseID <= 0 || problem.Type == "" {
			return fmt.Errorf("malformed problem %s", key)
		}
		publisher.Publish(ctx, problem)
		return nil
	}
}
