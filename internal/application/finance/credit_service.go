// Package finance records credit and refund adjustments triggered by order
// changes, guarded by the same idempotency ledger the exchange consumers use.
package finance

import (
	"context"
	"fmt"

	"github.com/autoparts/backend/internal/domain/finance"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const creditCategory = "finance-credit"

// Ledger is the exactly-once gate consulted before an adjustment is recorded
type Ledger interface {
	TryAcquire(ctx context.Context, key, category string) (bool, error)
}

// CreditService records customer credit and refund adjustments exactly once.
// The adjustment description is the idempotency key: a cancelled order
// retried through the queue, or the same ERP document uploaded twice, yields
// a single recorded adjustment.
type CreditService struct {
	adjustments finance.CreditAdjustmentRepository
	ledger      Ledger
	logger      *zap.Logger
}

// NewCreditService creates a new CreditService
func NewCreditService(adjustments finance.CreditAdjustmentRepository, ledger Ledger, logger *zap.Logger) *CreditService {
	return &CreditService{
		adjustments: adjustments,
		ledger:      ledger,
		logger:      logger,
	}
}

// Record records one adjustment keyed by its description. Returns true when
// the adjustment was recorded, false when it was already present.
func (s *CreditService) Record(ctx context.Context, orderGUID string, kind finance.AdjustmentKind, amount decimal.Decimal, description string) (bool, error) {
	if !kind.IsValid() {
		return false, shared.NewDomainError("INVALID_ADJUSTMENT_KIND", "Unknown adjustment kind")
	}
	if amount.IsNegative() || amount.IsZero() {
		return false, shared.NewDomainError("INVALID_AMOUNT", "Adjustment amount must be positive")
	}
	if description == "" {
		return false, shared.NewDomainError("INVALID_DESCRIPTION", "Adjustment description must not be empty")
	}

	acquired, err := s.ledger.TryAcquire(ctx, description, creditCategory)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency ledger: %w", err)
	}
	if !acquired {
		s.logger.Debug("duplicate credit adjustment skipped",
			zap.String("order_guid", orderGUID),
			zap.String("description", description),
		)
		return false, nil
	}

	adjustment := &finance.CreditAdjustment{
		OrderGUID:   orderGUID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
	}
	if err := s.adjustments.Save(ctx, adjustment); err != nil {
		return false, fmt.Errorf("failed to save credit adjustment: %w", err)
	}

	s.logger.Info("credit adjustment recorded",
		zap.String("order_guid", orderGUID),
		zap.String("kind", string(kind)),
		zap.String("amount", amount.StringFixed(2)),
	)
	return true, nil
}
