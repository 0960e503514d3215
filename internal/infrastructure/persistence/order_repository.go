package persistence

import (
	"context"
	"errors"

	"github.com/autoparts/backend/internal/domain/orders"
	"github.com/autoparts/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormOrderRepository implements orders.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Ensure GormOrderRepository implements orders.Repository
var _ orders.Repository = (*GormOrderRepository)(nil)

// FindByGUID loads an order with its items
func (r *GormOrderRepository) FindByGUID(ctx context.Context, guid string) (*orders.Order, error) {
	var order orders.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "guid = ?", guid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByNumber loads an order by its human-readable number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number string) (*orders.Order, error) {
	var order orders.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("number = ?", number).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Save persists the order and its items
func (r *GormOrderRepository) Save(ctx context.Context, order *orders.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(order).Error
	})
}

// FindAll returns the current set of orders with items, oldest first
func (r *GormOrderRepository) FindAll(ctx context.Context) ([]orders.Order, error) {
	var list []orders.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Order("placed_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
