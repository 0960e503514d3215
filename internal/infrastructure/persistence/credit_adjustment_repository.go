package persistence

import (
	"context"

	"github.com/autoparts/backend/internal/domain/finance"
	"gorm.io/gorm"
)

// GormCreditAdjustmentRepository implements finance.CreditAdjustmentRepository using GORM
type GormCreditAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormCreditAdjustmentRepository creates a new GormCreditAdjustmentRepository
func NewGormCreditAdjustmentRepository(db *gorm.DB) *GormCreditAdjustmentRepository {
	return &GormCreditAdjustmentRepository{db: db}
}

// Ensure GormCreditAdjustmentRepository implements finance.CreditAdjustmentRepository
var _ finance.CreditAdjustmentRepository = (*GormCreditAdjustmentRepository)(nil)

// Save persists a credit adjustment
func (r *GormCreditAdjustmentRepository) Save(ctx context.Context, adjustment *finance.CreditAdjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

// FindByOrder returns the adjustments recorded for an order, oldest first
func (r *GormCreditAdjustmentRepository) FindByOrder(ctx context.Context, orderGUID string) ([]finance.CreditAdjustment, error) {
	var list []finance.CreditAdjustment
	if err := r.db.WithContext(ctx).
		Where("order_guid = ?", orderGUID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
