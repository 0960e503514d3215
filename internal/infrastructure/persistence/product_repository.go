package persistence

import (
	"context"
	"errors"

	"github.com/autoparts/backend/internal/domain/catalog"
	"github.com/autoparts/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// UpsertBatch writes a batch of products in one transaction. Products are
// upserted by guid; the attribute set of each product is replaced wholesale
// (delete then insert) so stale attributes never survive a re-import.
func (r *GormProductRepository) UpsertBatch(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range products {
			p := products[i]
			attrs := p.Attributes
			p.Attributes = nil

			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "guid"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"article", "name", "description", "unit", "updated_at",
				}),
			}).Create(&p).Error; err != nil {
				return err
			}

			if err := tx.Where("product_guid = ?", p.GUID).
				Delete(&catalog.ProductAttribute{}).Error; err != nil {
				return err
			}
			for j := range attrs {
				attrs[j].ID = 0
				attrs[j].ProductGUID = p.GUID
			}
			if len(attrs) > 0 {
				if err := tx.Create(&attrs).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// FindByGUID finds a product with its attributes by guid
func (r *GormProductRepository) FindByGUID(ctx context.Context, guid string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Preload("Attributes").
		First(&product, "guid = ?", guid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// Count returns the number of stored products
func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&catalog.Product{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
