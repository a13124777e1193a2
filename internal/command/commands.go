package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date that accepts "2006-01-02" or RFC 3339 in JSON
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: t}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// ParseDate parses "2006-01-02" or an RFC 3339 timestamp
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// Inventory Commands
type CreateInventory struct {
	ProductID      int64 `json:"product_id" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	Quantity       int   `json:"quantity" validate:"required,gt=0"`
	BestBeforeDate Date  `json:"best_before_date" validate:"required"`
}

type AddStock struct {
	ProductID      int64 `json:"product_id" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	Quantity       int   `json:"quantity" validate:"required,gt=0"`
	BestBeforeDate Date  `json:"best_before_date" validate:"required"`
}

// ReduceStock takes stock out of a record. A non-zero BestBeforeDate must match the record's lot.
type ReduceStock struct {
	ProductID      int64 `json:"product_id" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	Quantity       int   `json:"quantity" validate:"required,gt=0"`
	BestBeforeDate Date  `json:"best_before_date"`
}

type MoveStock struct {
	ProductID       int64 `json:"product_id" validate:"required,gt=0"`
	FromWarehouseID int64 `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64 `json:"to_warehouse_id" validate:"required,gt=0,nefield=FromWarehouseID"`
	Quantity        int   `json:"quantity" validate:"required,gt=0"`
	BestBeforeDate  Date  `json:"best_before_date"`
}

type UpdateBestBeforeDate struct {
	ProductID      int64 `json:"product_id" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	BestBeforeDate Date  `json:"best_before_date" validate:"required"`
}

type DeleteInventory struct {
	ProductID      int64 `json:"product_id" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	BestBeforeDate Date  `json:"best_before_date"`
}

// Alert Commands
type CreateAlert struct {
	Title       string `json:"title" validate:"required,max=200"`
	Message     string `json:"message" validate:"required,max=2000"`
	Severity    string `json:"severity" validate:"required"`
	Type        string `json:"type" validate:"required,max=64"`
	AccountID   int64  `json:"account_id" validate:"required,gt=0"`
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
}

type MarkAlertRead struct {
	AlertID string `json:"alert_id" validate:"required,uuid"`
}
