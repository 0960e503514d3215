package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/finance"
	"github.com/autoparts/backend/internal/domain/orders"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/autoparts/backend/internal/infrastructure/cml"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ordersApplyCategory = "orders-apply"

// CreditRecorder records a credit adjustment exactly once per description.
// Satisfied by the finance credit service.
type CreditRecorder interface {
	Record(ctx context.Context, orderGUID string, kind finance.AdjustmentKind, amount decimal.Decimal, description string) (bool, error)
}

// OrdersApplyService applies order-change documents from the ERP to local
// orders. Every document passes the idempotency ledger before any mutation,
// keyed by request id and document guid, so a redelivered or re-uploaded
// document is absorbed without a second state change.
type OrdersApplyService struct {
	store   ObjectStore
	orders  orders.Repository
	ledger  IdempotencyLedger
	push    *IntegrationPushService
	credits CreditRecorder
	logger  *zap.Logger
}

// NewOrdersApplyService creates a new OrdersApplyService
func NewOrdersApplyService(store ObjectStore, repo orders.Repository, ledger IdempotencyLedger, push *IntegrationPushService, credits CreditRecorder, logger *zap.Logger) *OrdersApplyService {
	return &OrdersApplyService{
		store:   store,
		orders:  repo,
		ledger:  ledger,
		push:    push,
		credits: credits,
		logger:  logger,
	}
}

// Handle consumes one orders-apply job
func (s *OrdersApplyService) Handle(ctx context.Context, job exchange.Job) error {
	body, err := s.store.Get(ctx, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to open staged document: %w", err)
	}
	defer body.Close()

	applied, skipped := 0, 0
	err = cml.ParseOrderChanges(body, func(change orders.Change) error {
		changed, err := s.applyChange(ctx, job.RequestID, change)
		if err != nil {
			return err
		}
		if changed {
			applied++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("order changes applied",
		zap.String("object_key", job.ObjectKey),
		zap.String("request_id", job.RequestID),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
	)
	return nil
}

// applyChange applies a single change document. Returns true when the order
// state actually changed.
func (s *OrdersApplyService) applyChange(ctx context.Context, requestID string, change orders.Change) (bool, error) {
	docID := change.GUID
	if docID == "" {
		docID = change.Number
	}

	acquired, err := s.ledger.TryAcquire(ctx, requestID+":"+docID, ordersApplyCategory)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency ledger: %w", err)
	}
	if !acquired {
		s.logger.Debug("duplicate order change skipped",
			zap.String("request_id", requestID),
			zap.String("document", docID),
		)
		return false, nil
	}

	order, err := s.findOrder(ctx, change)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Unknown orders are dropped. The exchange never creates
			// orders from change documents: the shop is the origin of
			// orders, the ERP only mutates them.
			s.logger.Warn("order change for unknown order dropped",
				zap.String("guid", change.GUID),
				zap.String("number", change.Number),
			)
			return false, nil
		}
		return false, err
	}

	target, ok := change.TargetStatus()
	if !ok {
		s.logger.Warn("order change carries unknown status",
			zap.String("guid", order.GUID),
			zap.String("status_text", change.StatusText),
		)
		return false, nil
	}

	if change.Paid {
		order.Paid = true
	}
	if !order.ApplyStatus(target) {
		s.logger.Debug("order status unchanged",
			zap.String("guid", order.GUID),
			zap.String("current", order.Status.String()),
			zap.String("target", target.String()),
		)
		return false, nil
	}

	wasPaid := order.Paid
	if err := s.orders.Save(ctx, order); err != nil {
		return false, fmt.Errorf("failed to save order %s: %w", order.GUID, err)
	}

	s.recordRefund(ctx, order, target, wasPaid)
	s.notify(ctx, order, target)
	return true, nil
}

// recordRefund records a refund adjustment when a paid order is cancelled
// or returned. Keyed by guid and target status so a redelivered change never
// doubles the refund.
func (s *OrdersApplyService) recordRefund(ctx context.Context, order *orders.Order, target orders.Status, wasPaid bool) {
	if s.credits == nil || !wasPaid || order.Total.IsZero() {
		return
	}
	if target != orders.StatusCancelled && target != orders.StatusReturned {
		return
	}
	kind := finance.AdjustmentRefund
	if target == orders.StatusCancelled {
		kind = finance.AdjustmentCredit
	}
	description := fmt.Sprintf("refund:%s:%s", order.GUID, target)
	if _, err := s.credits.Record(ctx, order.GUID, kind, order.Total, description); err != nil {
		s.logger.Error("failed to record refund adjustment",
			zap.String("guid", order.GUID),
			zap.Error(err),
		)
	}
}

// notify pushes the state change to the integration queues. Push failures
// are logged and swallowed: the order mutation is already committed and the
// push is reporting, not part of the transaction.
func (s *OrdersApplyService) notify(ctx context.Context, order *orders.Order, target orders.Status) {
	if s.push == nil {
		return
	}
	var err error
	if target == orders.StatusReturned {
		err = s.push.PushReturn(ctx, order)
	} else {
		err = s.push.PushOrder(ctx, order)
	}
	if err != nil {
		s.logger.Error("integration push failed",
			zap.String("guid", order.GUID),
			zap.String("status", target.String()),
			zap.Error(err),
		)
	}
}

func (s *OrdersApplyService) findOrder(ctx context.Context, change orders.Change) (*orders.Order, error) {
	if change.GUID != "" {
		order, err := s.orders.FindByGUID(ctx, change.GUID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, shared.ErrNotFound) || change.Number == "" {
			return nil, err
		}
	}
	return s.orders.FindByNumber(ctx, change.Number)
}
