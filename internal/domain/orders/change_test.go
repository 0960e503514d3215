package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChange_TargetStatus(t *testing.T) {
	t.Run("textual status resolves case-insensitively", func(t *testing.T) {
		cases := map[string]Status{
			"Новый":       StatusNew,
			"подтвержден": StatusConfirmed,
			"Подтверждён": StatusConfirmed,
			"ОПЛАЧЕН":     StatusPaid,
			"Отгружен":    StatusShipped,
			"Выполнен":    StatusCompleted,
			"Завершён":    StatusCompleted,
			"Отменен":     StatusCancelled,
			"возврат":     StatusReturned,
			"  shipped  ": StatusShipped,
		}
		for text, want := range cases {
			got, ok := Change{StatusText: text}.TargetStatus()
			assert.True(t, ok, "text %q", text)
			assert.Equal(t, want, got, "text %q", text)
		}
	})

	t.Run("unknown text resolves to nothing", func(t *testing.T) {
		_, ok := Change{StatusText: "В обработке"}.TargetStatus()
		assert.False(t, ok)
		_, ok = Change{}.TargetStatus()
		assert.False(t, ok)
	})

	t.Run("paid flag wins over a stale status text", func(t *testing.T) {
		got, ok := Change{StatusText: "Отгружен", Paid: true}.TargetStatus()
		assert.True(t, ok)
		assert.Equal(t, StatusPaid, got)
	})

	t.Run("cancellation wins over everything", func(t *testing.T) {
		got, ok := Change{StatusText: "Оплачен", Paid: true, Shipped: true, Cancelled: true}.TargetStatus()
		assert.True(t, ok)
		assert.Equal(t, StatusCancelled, got)
	})

	t.Run("shipped flag wins over text but not over paid", func(t *testing.T) {
		got, ok := Change{StatusText: "Новый", Shipped: true}.TargetStatus()
		assert.True(t, ok)
		assert.Equal(t, StatusShipped, got)

		got, ok = Change{Paid: true, Shipped: true}.TargetStatus()
		assert.True(t, ok)
		assert.Equal(t, StatusPaid, got)
	})
}
