package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, version int, e Event) EventStoreRecord {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return EventStoreRecord{StreamID: "o1", StreamType: CheckoutStream, Version: version, EventType: e.EventType(), Payload: payload}
}

func TestRehydrateCheckout(t *testing.T) {
	placed := OrderPlaced{OrderID: "o1", ShopID: "s1", Total: decimal.RequireFromString("7.50"), PlacedAt: time.Now()}
	confirmed := PaymentConfirmed{OrderID: "o1", Source: PaymentSourceWidget}

	c := NewCheckout()
	require.NoError(t, Rehydrate(c, []EventStoreRecord{record(t, 1, placed), record(t, 2, confirmed)}))
	assert.Equal(t, CheckoutPaymentConfirmed, c.State)
	assert.Equal(t, "o1", c.GetAggregateID())
	assert.Equal(t, 2, c.GetVersion())
	assert.Equal(t, "7.50", c.Total.StringFixed(2))
}

func TestRehydrateRejectsBadStreams(t *testing.T) {
	err := Rehydrate(NewCheckout(), []EventStoreRecord{record(t, 1, PaymentConfirmed{OrderID: "o1"})})
	assert.ErrorIs(t, err, ErrInvalidTransition, "payment before the order")

	err = Rehydrate(NewCheckout(), []EventStoreRecord{{StreamID: "o1", Version: 1, EventType: "OrderShipped"}})
	assert.ErrorContains(t, err, "unknown event type")
}
