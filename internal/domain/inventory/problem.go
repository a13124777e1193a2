package inventory

import (
	"context"
	"time"
)

// Severity of a detected problem. The values travel by value into the alerting
// module, which keeps its own copy of the vocabulary.
type Severity string

const (
	SeverityLow     Severity = "LOW"
	SeverityMedium  Severity = "MEDIUM"
	SeverityHigh    Severity = "HIGH"
	SeverityWarning Severity = "WARNING"
)

// ProblemType tags the category of a detected problem.
type ProblemType string

const (
	ProblemStockLow          ProblemType = "stock-low"
	ProblemExpirationWarning ProblemType = "expiration-warning"
)

// ProblemDetected is raised by a stock mutation or by the expiration scan and
// is delivered to the alerting module through a ProblemPublisher.
type ProblemDetected struct {
	Type           ProblemType `json:"type"`
	Severity       Severity    `json:"severity"`
	ProductID      int64       `json:"product_id"`
	WarehouseID    int64       `json:"warehouse_id"`
	Stock          int         `json:"stock"`
	MinimumStock   int         `json:"minimum_stock,omitempty"`
	BestBeforeDate time.Time   `json:"best_before_date"`
	DaysToExpiry   int         `json:"days_to_expiry,omitempty"`
	DetectedAt     time.Time   `json:"detected_at"`
}

// ProblemPublisher delivers problems to whoever turns them into alerts.
// Publish has no error result: delivery is best-effort and must never fail
// the stock mutation that raised the problem.
type ProblemPublisher interface {
	Publish(ctx context.Context, problem ProblemDetected)
}

// ProblemPublisherFunc adapts a function to ProblemPublisher
type ProblemPublisherFunc func(ctx context.Context, problem ProblemDetected)

func (f ProblemPublisherFunc) Publish(ctx context.Context, problem ProblemDetected) {
	f(ctx, problem)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ProblemDetected) {}
