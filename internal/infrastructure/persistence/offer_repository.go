package persistence

import (
	"context"

	"github.com/autoparts/backend/internal/domain/catalog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPriceRepository implements catalog.PriceRepository using GORM
type GormPriceRepository struct {
	db *gorm.DB
}

// NewGormPriceRepository creates a new GormPriceRepository
func NewGormPriceRepository(db *gorm.DB) *GormPriceRepository {
	return &GormPriceRepository{db: db}
}

// Ensure GormPriceRepository implements PriceRepository
var _ catalog.PriceRepository = (*GormPriceRepository)(nil)

// UpsertBatch upserts prices by (product guid, price-type guid) in one
// transaction. Variant offers collapse to the same product guid, so the
// batch may repeat a key; the last row wins before the insert, as
// ON CONFLICT cannot update the same row twice in one statement.
func (r *GormPriceRepository) UpsertBatch(ctx context.Context, prices []catalog.Price) error {
	prices = dedupeLastWins(prices, func(p catalog.Price) string {
		return p.ProductGUID + "|" + p.PriceTypeGUID
	})
	if len(prices) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_guid"}, {Name: "price_type_guid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price_type_name", "currency", "value", "updated_at",
			}),
		}).Create(&prices).Error
	})
}

// FindByProduct returns all stored prices of a product
func (r *GormPriceRepository) FindByProduct(ctx context.Context, productGUID string) ([]catalog.Price, error) {
	var prices []catalog.Price
	if err := r.db.WithContext(ctx).
		Where("product_guid = ?", productGUID).
		Find(&prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}

// GormStockRepository implements catalog.StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// Ensure GormStockRepository implements StockRepository
var _ catalog.StockRepository = (*GormStockRepository)(nil)

// UpsertBatch upserts stock rows by (product guid, warehouse guid) in
// one transaction, keeping the last row per key as with prices.
func (r *GormStockRepository) UpsertBatch(ctx context.Context, stocks []catalog.Stock) error {
	stocks = dedupeLastWins(stocks, func(s catalog.Stock) string {
		return s.ProductGUID + "|" + s.WarehouseGUID
	})
	if len(stocks) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_guid"}, {Name: "warehouse_guid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "updated_at",
			}),
		}).Create(&stocks).Error
	})
}

// FindByProduct returns all stored stock rows of a product
func (r *GormStockRepository) FindByProduct(ctx context.Context, productGUID string) ([]catalog.Stock, error) {
	var stocks []catalog.Stock
	if err := r.db.WithContext(ctx).
		Where("product_guid = ?", productGUID).
		Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

// dedupeLastWins keeps the last row per key, preserving first-seen order.
func dedupeLastWins[T any](rows []T, key func(T) string) []T {
	if len(rows) < 2 {
		return rows
	}
	out := make([]T, 0, len(rows))
	pos := make(map[string]int, len(rows))
	for _, row := range rows {
		k := key(row)
		if i, ok := pos[k]; ok {
			out[i] = row
			continue
		}
		pos[k] = len(out)
		out = append(out, row)
	}
	return out
}
