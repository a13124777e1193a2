package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service owns the alert lifecycle
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger.With(zap.String("component", "alert")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new active alert
func (s *Service) Create(ctx context.Context, title, message, severity, alertType string, accountID, productID, warehouseID int64) (*Alert, error) {
	a, err := New(title, message, severity, alertType, accountID, productID, warehouseID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}

	s.logger.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("type", a.Type),
		zap.String("severity", string(a.Severity)),
		zap.Int64("account_id", a.AccountID),
		zap.Int64("product_id", a.ProductID),
		zap.Int64("warehouse_id", a.WarehouseID),
	)
	return a, nil
}

// MarkRead marks an alert read. Alerts already read are returned unchanged.
func (s *Service) MarkRead(ctx context.Context, id string) (*Alert, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed, err := a.MarkRead(now)
	if err != nil || !changed {
		return a, err
	}

	updated, err := s.repo.UpdateState(ctx, id, StateActive, StateRead, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark alert read: %w", err)
	}
	if !updated {
		// Someone else moved it first; report what is stored.
		return s.repo.Get(ctx, id)
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.repo.Get(ctx, id)
}

// ListByAccount lists an account's alerts, optionally filtered by state
func (s *Service) ListByAccount(ctx context.Context, accountID int64, state State) ([]*Alert, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account %d", ErrInvalidReference, accountID)
	}
	if _, err := ParseState(string(state)); err != nil {
		return nil, err
	}
	return s.repo.ListByAccount(ctx, accountID, state)
}
