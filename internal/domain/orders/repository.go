package orders

import "context"

// Repository persists orders and their items
type Repository interface {
	// FindByGUID loads an order with its items, or shared.ErrNotFound
	FindByGUID(ctx context.Context, guid string) (*Order, error)
	// FindByNumber is the lookup fallback for change documents without a guid
	FindByNumber(ctx context.Context, number string) (*Order, error)
	Save(ctx context.Context, order *Order) error
	// FindAll returns the current set of orders with items, oldest first,
	// for the export builder.
	FindAll(ctx context.Context) ([]Order, error)
}
