package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusPaid, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPaid, StatusPending, false},
		{StatusCancelled, StatusPaid, false},
		{StatusDelivered, StatusCancelled, false},
		{Status("unknown"), StatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "PAID", "EXPIRED", "FAILED"} {
		ps, ok := ParsePaymentStatus(s)
		assert.True(t, ok)
		assert.Equal(t, s, string(ps))
	}
	_, ok := ParsePaymentStatus("paid")
	assert.False(t, ok)

	assert.True(t, PaymentPaid.Terminal())
	assert.True(t, PaymentExpired.Terminal())
	assert.False(t, PaymentFailed.Terminal())
	assert.False(t, PaymentPending.Terminal())
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^ORD-20240115-[0-9A-F]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		n := NewOrderNumber(now)
		assert.Regexp(t, re, n)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestValidateCart(t *testing.T) {
	ok := CheckoutInput{Items: []CartLine{{ProductID: 1, Quantity: 1}}, ShippingAddress: "Jl. Sudirman No. 1"}
	assert.NoError(t, ValidateCart(ok))

	tooMany := ok
	tooMany.Items = make([]CartLine, MaxCartLines+1)
	for i := range tooMany.Items {
		tooMany.Items[i] = CartLine{ProductID: 1, Quantity: 1}
	}
	short := ok
	short.ShippingAddress = "Jl. A"
	empty := ok
	empty.Items = nil

	for name, in := range map[string]CheckoutInput{"too many": tooMany, "short address": short, "empty": empty} {
		t.Run(name, func(t *testing.T) {
			var ve *ValidationError
			assert.ErrorAs(t, ValidateCart(in), &ve)
		})
	}
}

func TestItemsTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Subtotal: decimal.RequireFromString("0.10")},
		{Subtotal: decimal.RequireFromString("0.20")},
	}}
	assert.True(t, o.ItemsTotal().Equal(decimal.RequireFromString("0.30")))
}
