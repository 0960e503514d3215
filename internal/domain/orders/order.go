// Package orders holds the order aggregate mutated by ERP order-change
// documents and rendered back to the ERP by the export builder.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an order
type Status string

const (
	StatusNew       Status = "NEW"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusReturned  Status = "RETURNED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusPaid, StatusShipped,
		StatusCompleted, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusReturned
}

// rank orders the forward progression. CANCELLED and RETURNED sit outside
// the progression and are reachable from any non-terminal state.
func (s Status) rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusConfirmed:
		return 1
	case StatusPaid:
		return 2
	case StatusShipped:
		return 3
	case StatusCompleted:
		return 4
	}
	return -1
}

// CanTransitionTo checks if the status can transition to the target status.
// Transitions are monotonic: a change document carrying an earlier status
// than the current one is absorbed as a no-op, never a rollback.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StatusCancelled || target == StatusReturned {
		return true
	}
	return target.rank() > s.rank()
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	OrderGUID   string          `gorm:"type:varchar(36);not null;index"`
	ProductGUID string          `gorm:"type:varchar(36);not null"`
	ProductName string          `gorm:"type:varchar(500)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Sum         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "cml_order_items"
}

// Order is the aggregate root keyed by the ERP guid, with the human-readable
// number as a lookup fallback for documents that carry no guid.
type Order struct {
	GUID         string          `gorm:"type:varchar(36);primaryKey"`
	Number       string          `gorm:"type:varchar(50);index"`
	CustomerGUID string          `gorm:"type:varchar(36)"`
	CustomerName string          `gorm:"type:varchar(300)"`
	Status       Status          `gorm:"type:varchar(20);not null;default:'NEW'"`
	Paid         bool            `gorm:"not null;default:false"`
	Total        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency     string          `gorm:"type:varchar(10)"`
	Items        []OrderItem     `gorm:"foreignKey:OrderGUID;references:GUID;constraint:OnDelete:CASCADE"`
	PlacedAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "cml_orders"
}

// ApplyStatus applies an incoming status if the transition is allowed.
// Returns true when the order actually changed.
func (o *Order) ApplyStatus(target Status) bool {
	if target == o.Status || !o.Status.CanTransitionTo(target) {
		return false
	}
	o.Status = target
	if target == StatusPaid {
		o.Paid = true
	}
	return true
}
