package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutLifecycle(t *testing.T) {
	c := NewCheckout()
	c.UPIID = "shop@upi"

	_, ok := c.PaymentURI()
	assert.False(t, ok, "no payment link before the order exists")

	require.ErrorIs(t, c.ApplyEvent(PaymentConfirmed{OrderID: "o1"}), ErrInvalidTransition)

	require.NoError(t, c.ApplyEvent(OrderPlaced{OrderID: "o1", ShopID: "s1", Total: decimal.NewFromInt(10), PlacedAt: time.Now()}))
	assert.Equal(t, CheckoutOrderCreated, c.State)

	uri, ok := c.PaymentURI()
	require.True(t, ok)
	assert.Equal(t, "upi://pay?pa=shop@upi&pn=PrintShop&am=10.00&cu=INR&tn=Print_Order_o1", uri)

	require.ErrorIs(t, c.ApplyEvent(OrderPlaced{OrderID: "o2"}), ErrInvalidTransition)
	require.ErrorIs(t, c.ApplyEvent(PaymentConfirmed{OrderID: "other"}), ErrInvalidTransition)

	require.NoError(t, c.ApplyEvent(PaymentConfirmed{OrderID: "o1", Source: PaymentSourceManual}))
	assert.Equal(t, CheckoutPaymentConfirmed, c.State)

	// Terminal state absorbs repeated confirmations.
	require.NoError(t, c.ApplyEvent(PaymentConfirmed{OrderID: "o1", Source: PaymentSourceWidget}))
	assert.Equal(t, CheckoutPaymentConfirmed, c.State)
}

func TestCheckoutFromOrder(t *testing.T) {
	o := Order{ID: "o1", ShopID: "s1", Price: decimal.RequireFromString("12.5"), PaymentStatus: PaymentPending}
	c := CheckoutFromOrder(o, "")
	assert.Equal(t, CheckoutOrderCreated, c.State)
	_, ok := c.PaymentURI()
	assert.False(t, ok, "shop without UPI id has no payment link")

	o.PaymentStatus = PaymentCompleted
	assert.Equal(t, CheckoutPaymentConfirmed, CheckoutFromOrder(o, "x@upi").State)
}

func TestUPIPaymentURIRegeneratesOnChange(t *testing.T) {
	first, ok := UPIPaymentURI("a@upi", "o1", decimal.RequireFromString("3.5"))
	require.True(t, ok)
	assert.Contains(t, first, "am=3.50")

	second, _ := UPIPaymentURI("a@upi", "o1", decimal.RequireFromString("4"))
	third, _ := UPIPaymentURI("b@upi", "o1", decimal.RequireFromString("4"))
	fourth, _ := UPIPaymentURI("b@upi", "o2", decimal.RequireFromString("4"))
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.NotEqual(t, third, fourth)

	_, ok = UPIPaymentURI("a@upi", "", decimal.NewFromInt(1))
	assert.False(t, ok)
	_, ok = UPIPaymentURI("a@upi", "o1", decimal.Zero)
	assert.False(t, ok)
}
