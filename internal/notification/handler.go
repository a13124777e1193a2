package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/liquor-inventory/internal/dispatch"
	"github.com/example/liquor-inventory/internal/domain/inventory"
	"github.com/example/liquor-inventory/internal/email"
)

// Mailer sends an HTML message
type Mailer interface {
	Send(to []string, subject, htmlBody string) error
}

// EmailHandler mails every detected problem to a fixed list of recipients.
// It is registered on the dispatcher next to the alert handler.
type EmailHandler struct {
	mailer     Mailer
	recipients []string
	logger     *zap.Logger
}

func NewEmailHandler(mailer Mailer, recipients []string, logger *zap.Logger) *EmailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailHandler{
		mailer:     mailer,
		recipients: recipients,
		logger:     logger.With(zap.String("component", "email_handler")),
	}
}

func (h *EmailHandler) Name() string { return "email" }

func (h *EmailHandler) Handle(ctx context.Context, problem inventory.ProblemDetected) error {
	title, message := dispatch.Render(problem)

	mail := email.ProblemMail{
		Title:       title,
		Message:     message,
		Severity:    string(problem.Severity),
		ProductID:   problem.ProductID,
		WarehouseID: problem.WarehouseID,
		Stock:       problem.Stock,
	}
	if !problem.BestBeforeDate.IsZero() {
		mail.BestBefore = problem.BestBeforeDate.Format(time.DateOnly)
	}

	body, err := email.BuildProblemBody(mail)
	if err != nil {
		return fmt.Errorf("failed to render mail: %w", err)
	}

	subject := fmt.Sprintf("[%s] %s", problem.Severity, title)
	if err := h.mailer.Send(h.recipients, subject, body); err != nil {
		return err
	}

	h.logger.Info("problem mailed",
		zap.String("type", string(problem.Type)),
		zap.Int64("product_id", problem.ProductID),
		zap.Int64("warehouse_id", problem.WarehouseID),
		zap.Int("recipients", len(h.recipients)),
	)
	return nil
}
