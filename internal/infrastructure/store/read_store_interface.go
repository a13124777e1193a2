package store

// CollectionInventory holds one InventoryReadModel per ledger record
const CollectionInventory = "inventory"

// ReadStoreInterface stores projected read models by collection and id.
// Implementations: ReadStore (memory) and PostgresReadStore.
type ReadStoreInterface interface {
	Set(collection, id string, data any) error
	Get(collection, id string) (any, bool, error)
	GetAll(collection string) ([]any, error)
	Delete(collection, id string) error
	// Update applies updateFn to the stored model and reports whether one existed
	Update(collection, id string, updateFn func(current any) any) (bool, error)
}
