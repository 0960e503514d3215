package finance

import (
	"context"
	"sync"
	"testing"

	domfinance "github.com/autoparts/backend/internal/domain/finance"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdjustmentRepo struct {
	mu    sync.Mutex
	saved []domfinance.CreditAdjustment
	err   error
}

func (r *fakeAdjustmentRepo) Save(ctx context.Context, adjustment *domfinance.CreditAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, *adjustment)
	return nil
}

func (r *fakeAdjustmentRepo) FindByOrder(ctx context.Context, orderGUID string) ([]domfinance.CreditAdjustment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domfinance.CreditAdjustment
	for _, a := range r.saved {
		if a.OrderGUID == orderGUID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mapLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMapLedger() *mapLedger {
	return &mapLedger{seen: make(map[string]bool)}
}

func (l *mapLedger) TryAcquire(ctx context.Context, key, category string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	id := key + ":" + category
	if l.seen[id] {
		return false, nil
	}
	l.seen[id] = true
	return true, nil
}

func TestCreditService_Record(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("5499.90")

	t.Run("records an adjustment", func(t *testing.T) {
		repo := &fakeAdjustmentRepo{}
		service := NewCreditService(repo, newMapLedger(), zap.NewNop())

		recorded, err := service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount, "refund:g1:CANCELLED")
		require.NoError(t, err)
		assert.True(t, recorded)

		require.Len(t, repo.saved, 1)
		assert.Equal(t, "g1", repo.saved[0].OrderGUID)
		assert.Equal(t, domfinance.AdjustmentCredit, repo.saved[0].Kind)
		assert.True(t, repo.saved[0].Amount.Equal(amount))
		assert.Equal(t, "refund:g1:CANCELLED", repo.saved[0].Description)
	})

	t.Run("duplicate description is absorbed", func(t *testing.T) {
		repo := &fakeAdjustmentRepo{}
		service := NewCreditService(repo, newMapLedger(), zap.NewNop())

		recorded, err := service.Record(ctx, "g1", domfinance.AdjustmentRefund, amount, "refund:g1:RETURNED")
		require.NoError(t, err)
		assert.True(t, recorded)

		recorded, err = service.Record(ctx, "g1", domfinance.AdjustmentRefund, amount, "refund:g1:RETURNED")
		require.NoError(t, err)
		assert.False(t, recorded)
		assert.Len(t, repo.saved, 1)
	})

	t.Run("different descriptions record separately", func(t *testing.T) {
		repo := &fakeAdjustmentRepo{}
		service := NewCreditService(repo, newMapLedger(), zap.NewNop())

		_, err := service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount, "refund:g1:CANCELLED")
		require.NoError(t, err)
		_, err = service.Record(ctx, "g1", domfinance.AdjustmentRefund, amount, "refund:g1:RETURNED")
		require.NoError(t, err)

		got, err := repo.FindByOrder(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("validation failures", func(t *testing.T) {
		service := NewCreditService(&fakeAdjustmentRepo{}, newMapLedger(), zap.NewNop())

		var domainErr *shared.DomainError

		_, err := service.Record(ctx, "g1", domfinance.AdjustmentKind("VOID"), amount, "d")
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_ADJUSTMENT_KIND", domainErr.Code)

		_, err = service.Record(ctx, "g1", domfinance.AdjustmentCredit, decimal.Zero, "d")
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)

		_, err = service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount.Neg(), "d")
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)

		_, err = service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount, "")
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_DESCRIPTION", domainErr.Code)
	})

	t.Run("ledger error propagates", func(t *testing.T) {
		ledger := newMapLedger()
		ledger.err = assert.AnError
		service := NewCreditService(&fakeAdjustmentRepo{}, ledger, zap.NewNop())

		_, err := service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount, "d")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("save error propagates", func(t *testing.T) {
		repo := &fakeAdjustmentRepo{err: assert.AnError}
		service := NewCreditService(repo, newMapLedger(), zap.NewNop())

		_, err := service.Record(ctx, "g1", domfinance.AdjustmentCredit, amount, "d")
		assert.ErrorIs(t, err, assert.AnError)
	})
}
