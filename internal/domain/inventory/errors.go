package inventory

import (
	"errors"
	"fmt"
)

// Error categories. Every ledger error wraps exactly one of them, so callers
// can branch with errors.Is on the category or on the specific error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violated")
)

var (
	ErrInvalidQuantity       = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidProductID      = fmt.Errorf("%w: product id must be positive", ErrValidation)
	ErrInvalidWarehouseID    = fmt.Errorf("%w: warehouse id must be positive", ErrValidation)
	ErrInvalidBestBeforeDate = fmt.Errorf("%w: best before date is required", ErrValidation)
	ErrSameWarehouse         = fmt.Errorf("%w: source and destination warehouse must differ", ErrValidation)

	ErrInventoryNotFound = fmt.Errorf("%w: inventory", ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("%w: product", ErrNotFound)
	ErrWarehouseNotFound = fmt.Errorf("%w: warehouse", ErrNotFound)

	ErrInsufficientStock      = fmt.Errorf("%w: insufficient stock", ErrBusinessRule)
	ErrInventoryAlreadyExists = fmt.Errorf("%w: inventory already exists", ErrBusinessRule)
	ErrStockNotEmpty          = fmt.Errorf("%w: inventory still holds stock", ErrBusinessRule)
	ErrInvalidStateTransition = fmt.Errorf("%w: invalid availability state transition", ErrBusinessRule)

	// ErrConcurrentModification means the version compare-and-swap kept losing
	// against other writers until the retry budget ran out.
	ErrConcurrentModification = errors.New("inventory modified concurrently")
	// ErrCompensationFailed means a move left the source reduced and could not restore it.
	ErrCompensationFailed = errors.New("move compensation failed")
	// ErrCorruptLedger is returned when replayed events break a record invariant.
	ErrCorruptLedger = errors.New("ledger invariant violated")
)
