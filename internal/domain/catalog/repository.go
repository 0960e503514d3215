package catalog

import "context"

// ProductRepository persists catalog products by natural key
type ProductRepository interface {
	// UpsertBatch writes a batch of products in one transaction. Each
	// product's attribute set is replaced wholesale.
	UpsertBatch(ctx context.Context, products []Product) error
	FindByGUID(ctx context.Context, guid string) (*Product, error)
	Count(ctx context.Context) (int64, error)
}

// PriceRepository persists offer prices keyed by (product guid, price-type guid)
type PriceRepository interface {
	UpsertBatch(ctx context.Context, prices []Price) error
	FindByProduct(ctx context.Context, productGUID string) ([]Price, error)
}

// StockRepository persists warehouse stock keyed by (product guid, warehouse guid)
type StockRepository interface {
	UpsertBatch(ctx context.Context, stocks []Stock) error
	FindByProduct(ctx context.Context, productGUID string) ([]Stock, error)
}
