package inventory

import "time"

const (
	EventInventoryCreated      = "InventoryCreated"
	EventStockAdded            = "StockAdded"
	EventStockReduced          = "StockReduced"
	EventBestBeforeDateUpdated = "BestBeforeDateUpdated"
	EventInventoryDeleted      = "InventoryDeleted"
)

type InventoryCreated struct {
	ProductID      int64     `json:"product_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	Quantity       int       `json:"quantity"`
	BestBeforeDate time.Time `json:"best_before_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// StockAdded carries the merged best-before date: the earliest of the record's
// date and the incoming lot's date.
type StockAdded struct {
	ProductID      int64     `json:"product_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	Quantity       int       `json:"quantity"`
	ResultingStock int       `json:"resulting_stock"`
	BestBeforeDate time.Time `json:"best_before_date"`
	AddedAt        time.Time `json:"added_at"`
}

type StockReduced struct {
	ProductID      int64     `json:"product_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	Quantity       int       `json:"quantity"`
	ResultingStock int       `json:"resulting_stock"`
	ReducedAt      time.Time `json:"reduced_at"`
}

type BestBeforeDateUpdated struct {
	ProductID      int64     `json:"product_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	BestBeforeDate time.Time `json:"best_before_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type InventoryDeleted struct {
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	DeletedAt   time.Time `json:"deleted_at"`
}
