package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckoutState is the payment sub-state a customer observes.
type CheckoutState string

const (
	CheckoutNoOrder          CheckoutState = "NO_ORDER"
	CheckoutOrderCreated     CheckoutState = "ORDER_CREATED"
	CheckoutPaymentConfirmed CheckoutState = "PAYMENT_CONFIRMED"
)

// Checkout tracks one order from creation to payment confirmation. Its
// stream in the event store is keyed by the order id.
type Checkout struct {
	AggregateBase
	State   CheckoutState
	OrderID string
	ShopID  string
	Total   decimal.Decimal
	// UPIID is the shop's payment identifier, empty when the shop has none.
	UPIID string
}

// NewCheckout creates a Checkout with no order yet.
func NewCheckout() *Checkout {
	return &Checkout{State: CheckoutNoOrder}
}

// CheckoutFromOrder rebuilds the checkout state of an order that has no
// event stream yet. Its version is 0.
func CheckoutFromOrder(o Order, upiID string) *Checkout {
	c := &Checkout{
		AggregateBase: AggregateBase{ID: o.ID},
		State:         CheckoutOrderCreated,
		OrderID:       o.ID,
		ShopID:        o.ShopID,
		Total:         o.Price,
		UPIID:         upiID,
	}
	if o.PaymentStatus == PaymentCompleted {
		c.State = CheckoutPaymentConfirmed
	}
	return c
}

// PlacedEvent is the OrderPlaced event that opens the stream of o.
func PlacedEvent(o Order) OrderPlaced {
	return OrderPlaced{OrderID: o.ID, ShopID: o.ShopID, Total: o.Price, PlacedAt: o.CreatedAt}
}

// ApplyEvent mutates the checkout state based on the event.
func (c *Checkout) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case OrderPlaced:
		if c.State != CheckoutNoOrder {
			return fmt.Errorf("%w: order already created for this checkout", ErrInvalidTransition)
		}
		c.ID = e.OrderID
		c.OrderID = e.OrderID
		c.ShopID = e.ShopID
		c.Total = e.Total
		c.State = CheckoutOrderCreated
	case PaymentConfirmed:
		switch c.State {
		case CheckoutNoOrder:
			return fmt.Errorf("%w: no order to pay for", ErrInvalidTransition)
		case CheckoutPaymentConfirmed:
			// Terminal; a second confirmation changes nothing.
			return nil
		}
		if e.OrderID != c.OrderID {
			return fmt.Errorf("%w: payment for order %s does not match %s", ErrInvalidTransition, e.OrderID, c.OrderID)
		}
		c.State = CheckoutPaymentConfirmed
	default:
		return fmt.Errorf("unknown event type for Checkout: %s", e.EventType())
	}
	return nil
}

// PaymentURI returns the UPI deep link for the current order, if all of
// its inputs are known. It is rebuilt on every call so it always reflects
// the current UPI id, order id and total.
func (c *Checkout) PaymentURI() (string, bool) {
	if c.State == CheckoutNoOrder {
		return "", false
	}
	return UPIPaymentURI(c.UPIID, c.OrderID, c.Total)
}
