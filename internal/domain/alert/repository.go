package alert

import (
	"context"
	"time"
)

// Repository persists alerts. Alerts are never physically deleted.
type Repository interface {
	// Save inserts a new alert
	Save(ctx context.Context, a *Alert) error
	// Get returns ErrAlertNotFound for unknown ids
	Get(ctx context.Context, id string) (*Alert, error)
	// ListByAccount returns the account's alerts, newest first. An empty state matches all.
	ListByAccount(ctx context.Context, accountID int64, state State) ([]*Alert, error)
	// UpdateState moves the alert from one state to another and reports false
	// when the alert was no longer in the from state.
	UpdateState(ctx context.Context, id string, from, to State, at time.Time) (bool, error)
}
