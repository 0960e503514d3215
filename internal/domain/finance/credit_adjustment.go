// Package finance holds the credit and refund adjustments recorded when
// order changes from the ERP move money back toward the customer.
package finance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentKind classifies a credit adjustment
type AdjustmentKind string

const (
	AdjustmentCredit AdjustmentKind = "CREDIT"
	AdjustmentRefund AdjustmentKind = "REFUND"
)

// IsValid checks if the kind is a valid AdjustmentKind
func (k AdjustmentKind) IsValid() bool {
	return k == AdjustmentCredit || k == AdjustmentRefund
}

// CreditAdjustment is one recorded movement toward the customer. The
// description doubles as the idempotency key: two adjustments with the same
// description are the same business event, and only the first is recorded.
type CreditAdjustment struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	OrderGUID   string          `gorm:"type:varchar(36);not null;index"`
	Kind        AdjustmentKind  `gorm:"type:varchar(10);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Description string          `gorm:"type:varchar(300);not null"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (CreditAdjustment) TableName() string {
	return "cml_credit_adjustments"
}

// CreditAdjustmentRepository persists credit adjustments
type CreditAdjustmentRepository interface {
	Save(ctx context.Context, adjustment *CreditAdjustment) error
	FindByOrder(ctx context.Context, orderGUID string) ([]CreditAdjustment, error)
}
