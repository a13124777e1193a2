package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow     Severity = "LOW"
	SeverityMedium  Severity = "MEDIUM"
	SeverityHigh    Severity = "HIGH"
	SeverityWarning Severity = "WARNING"
)

// ParseSeverity accepts the severity names case-insensitively
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToUpper(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityWarning:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}

// State of an alert. Alerts only move forward: Active, then Read.
// Resolved is part of the model but no operation reaches it yet.
type State string

const (
	StateActive   State = "ACTIVE"
	StateRead     State = "READ"
	StateResolved State = "RESOLVED"
)

// ParseState accepts the state names case-insensitively. An empty string means no filter.
func ParseState(s string) (State, error) {
	switch st := State(strings.ToUpper(strings.TrimSpace(s))); st {
	case "", StateActive, StateRead, StateResolved:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Alert is a notification for an account. The product and warehouse it
// concerns are kept as plain ids owned by another module.
type Alert struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Severity    Severity   `json:"severity"`
	Type        string     `json:"type"`
	State       State      `json:"state"`
	AccountID   int64      `json:"account_id"`
	ProductID   int64      `json:"product_id"`
	WarehouseID int64      `json:"warehouse_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// New validates the fields and returns an active alert
func New(title, message, severity, alertType string, accountID, productID, warehouseID int64, now time.Time) (*Alert, error) {
	fields := []struct {
		name  string
		value string
	}{{"title", title}, {"message", message}, {"type", alertType}}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return nil, fmt.Errorf("%w: %s", ErrBlankField, f.name)
		}
	}
	sev, err := ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	refs := []struct {
		name string
		id   int64
	}{{"account", accountID}, {"product", productID}, {"warehouse", warehouseID}}
	for _, r := range refs {
		if r.id <= 0 {
			return nil, fmt.Errorf("%w: %s %d", ErrInvalidReference, r.name, r.id)
		}
	}

	return &Alert{
		ID:          uuid.New().String(),
		Title:       title,
		Message:     message,
		Severity:    sev,
		Type:        alertType,
		State:       StateActive,
		AccountID:   accountID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		CreatedAt:   now,
	}, nil
}

// MarkRead moves an active alert to Read and reports whether anything changed.
// Marking a read alert again is a no-op.
func (a *Alert) MarkRead(now time.Time) (bool, error) {
	switch a.State {
	case StateActive:
		a.State = StateRead
		a.ReadAt = &now
		return true, nil
	case StateRead:
		return false, nil
	}
	return false, fmt.Errorf("%w: %s cannot be marked read from %s", ErrInvalidStateTransition, a.ID, a.State)
}
