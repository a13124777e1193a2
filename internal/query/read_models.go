package query

import "github.com/example/liquor-inventory/internal/readmodel"

type InventoryReadModel = readmodel.InventoryReadModel
