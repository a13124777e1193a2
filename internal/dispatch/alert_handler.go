package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/domain/inventory"
)

const DefaultAlertTimeout = 3 * time.Second

// AlertHandler turns a problem into an alert for the account owning the warehouse
type AlertHandler struct {
	directory inventory.WarehouseDirectory
	facade    inventory.AlertingFacade
	breaker   *Breaker
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAlertHandler(directory inventory.WarehouseDirectory, facade inventory.AlertingFacade, breaker *Breaker, timeout time.Duration, logger *zap.Logger) *AlertHandler {
	if timeout <= 0 {
		timeout = DefaultAlertTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{
		directory: directory,
		facade:    facade,
		breaker:   breaker,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "alert_handler")),
	}
}

func (h *AlertHandler) Name() string { return "alert" }

// Handle creates the alert. The caller's cancellation is ignored; only the
// handler's own timeout bounds the call.
func (h *AlertHandler) Handle(ctx context.Context, problem inventory.ProblemDetected) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	accountID, err := h.directory.AccountID(ctx, problem.WarehouseID)
	if err != nil {
		return fmt.Errorf("failed to resolve owner of warehouse %d: %w", problem.WarehouseID, err)
	}

	title, message := Render(problem)
	create := func() (string, error) {
		return h.facade.CreateAlert(ctx, title, message, string(problem.Severity), string(problem.Type),
			accountID, problem.ProductID, problem.WarehouseID)
	}

	var alertID string
	if h.breaker != nil {
		alertID, err = h.breaker.Execute(create)
	} else {
		alertID, err = create()
	}
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	h.logger.Info("alert raised",
		zap.String("alert_id", alertID),
		zap.String("type", string(problem.Type)),
		zap.String("severity", string(problem.Severity)),
		zap.Int64("account_id", accountID),
		zap.Int64("product_id", problem.ProductID),
		zap.Int64("warehouse_id", problem.WarehouseID),
	)
	return nil
}

// Render builds the alert title and message for a problem
func Render(p inventory.ProblemDetected) (string, string) {
	switch p.Type {
	case inventory.ProblemStockLow:
		if p.Stock == 0 {
			return fmt.Sprintf("Out of stock: product %d", p.ProductID),
				fmt.Sprintf("Product %d in warehouse %d is out of stock (minimum %d).", p.ProductID, p.WarehouseID, p.MinimumStock)
		}
		return fmt.Sprintf("Low stock: product %d", p.ProductID),
			fmt.Sprintf("Product %d in warehouse %d is down to %d units (minimum %d).", p.ProductID, p.WarehouseID, p.Stock, p.MinimumStock)
	case inventory.ProblemExpirationWarning:
		return fmt.Sprintf("Expiring soon: product %d", p.ProductID),
			fmt.Sprintf("Product %d in warehouse %d (%d units) reaches its best-before date %s %s.",
				p.ProductID, p.WarehouseID, p.Stock, p.BestBeforeDate.Format(time.DateOnly), inDays(p.DaysToExpiry))
	}
	return fmt.Sprintf("Inventory problem: product %d", p.ProductID),
		fmt.Sprintf("Problem %q detected for product %d in warehouse %d.", p.Type, p.ProductID, p.WarehouseID)
}

func inDays(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}
