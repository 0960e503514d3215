package orders

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Change is one parsed order-change document from the ERP. GUID may be
// empty for older configurations, in which case Number identifies the order.
type Change struct {
	GUID       string
	Number     string
	StatusText string
	Paid       bool
	Shipped    bool
	Cancelled  bool
	Total      decimal.Decimal
}

// erpStatuses maps the textual status vocabulary used by 1C configurations
// to the internal enum. Matching is case-insensitive on the trimmed value.
var erpStatuses = map[string]Status{
	"новый":       StatusNew,
	"подтвержден": StatusConfirmed,
	"подтверждён": StatusConfirmed,
	"оплачен":     StatusPaid,
	"отгружен":    StatusShipped,
	"выполнен":    StatusCompleted,
	"завершен":    StatusCompleted,
	"завершён":    StatusCompleted,
	"отменен":     StatusCancelled,
	"отменён":     StatusCancelled,
	"возврат":     StatusReturned,
	"new":         StatusNew,
	"confirmed":   StatusConfirmed,
	"paid":        StatusPaid,
	"shipped":     StatusShipped,
	"completed":   StatusCompleted,
	"cancelled":   StatusCancelled,
	"returned":    StatusReturned,
}

// TargetStatus resolves the status the change document asks for. The
// boolean requisites take precedence over the textual status: a document
// flagged as paid maps to PAID even when the text still says "Отгружен",
// because the requisites are written by the ERP after the text field.
func (c Change) TargetStatus() (Status, bool) {
	if c.Cancelled {
		return StatusCancelled, true
	}
	if c.Paid {
		return StatusPaid, true
	}
	if c.Shipped {
		return StatusShipped, true
	}
	s, ok := erpStatuses[strings.ToLower(strings.TrimSpace(c.StatusText))]
	return s, ok
}
