package persistence

import (
	"context"
	"time"

	exchangeapp "github.com/autoparts/backend/internal/application/exchange"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedMessage is one row of the idempotency ledger. The existence of a
// row is the sole proof that the keyed operation was already applied;
// inserting it is the commit point of "exactly once".
type ProcessedMessage struct {
	ID          string    `gorm:"type:varchar(300);primaryKey"`
	Category    string    `gorm:"type:varchar(100);not null;index"`
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// GormProcessedMessageRepository implements the idempotency ledger using GORM
type GormProcessedMessageRepository struct {
	db *gorm.DB
}

// NewGormProcessedMessageRepository creates a new GormProcessedMessageRepository
func NewGormProcessedMessageRepository(db *gorm.DB) *GormProcessedMessageRepository {
	return &GormProcessedMessageRepository{db: db}
}

// Ensure GormProcessedMessageRepository implements IdempotencyLedger
var _ exchangeapp.IdempotencyLedger = (*GormProcessedMessageRepository)(nil)

// TryAcquire atomically inserts a ledger row for (key, category). It returns
// true when the insert created the row and false when a row already existed.
// Insert uniqueness is the source of truth, not a read-then-write check, so
// concurrent callers with the same key race safely: exactly one wins.
func (r *GormProcessedMessageRepository) TryAcquire(ctx context.Context, key, category string) (bool, error) {
	row := ProcessedMessage{
		ID:          key + ":" + category,
		Category:    category,
		ProcessedAt: time.Now().UTC(),
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
