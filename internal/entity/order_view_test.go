package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrders(shopID string) []Order {
	return []Order{
		{ID: "o3", ShopID: shopID, Status: StatusPending},
		{ID: "o2", ShopID: shopID, Status: StatusCompleted},
		{ID: "o1", ShopID: shopID, Status: StatusCancelled},
	}
}

func TestOrderViewFilter(t *testing.T) {
	v := NewOrderView("s1").Apply(OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: time.Now()})

	assert.Len(t, v.Orders(FilterAll), 3)
	pending := v.Orders(FilterPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "o3", pending[0].ID)
	assert.Len(t, v.Orders(FilterCompleted), 1)
}

func TestOrderViewIgnoresOtherShop(t *testing.T) {
	v := NewOrderView("s1").Apply(OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: time.Now()})

	after := v.Apply(OrdersLoaded{ShopID: "s2", Orders: nil, LoadedAt: time.Now()})
	assert.Equal(t, v.Version(), after.Version())
	assert.Equal(t, 3, after.Len())

	after = v.Apply(OrderCompleted{OrderID: "o3", ShopID: "s2", CompletedAt: time.Now()})
	o, _ := after.Find("o3")
	assert.Equal(t, StatusPending, o.Status)
}

func TestOrderViewCompletionIsIdempotent(t *testing.T) {
	now := time.Now()
	v := NewOrderView("s1").Apply(OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: now})

	once := v.Apply(OrderCompleted{OrderID: "o3", ShopID: "s1", CompletedAt: now.Add(time.Second)})
	twice := once.Apply(OrderCompleted{OrderID: "o3", ShopID: "s1", CompletedAt: now.Add(2 * time.Second)})

	o, _ := twice.Find("o3")
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, once.Version(), twice.Version())

	before, _ := v.Find("o3")
	assert.Equal(t, StatusPending, before.Status, "Apply must not modify the receiver")
}

func TestOrderViewConvergesRegardlessOfArrivalOrder(t *testing.T) {
	start := time.Now()
	base := NewOrderView("s1").Apply(OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: start})
	completed := OrderCompleted{OrderID: "o3", ShopID: "s1", CompletedAt: start.Add(2 * time.Second)}

	// A read issued before the write lands after the optimistic patch.
	stale := OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: start.Add(time.Second)}
	// The refresh triggered by the write's own notification.
	fresh := sampleOrders("s1")
	fresh[0].Status = StatusCompleted
	current := OrdersLoaded{ShopID: "s1", Orders: fresh, LoadedAt: start.Add(3 * time.Second)}

	a := base.Apply(completed).Apply(stale).Apply(current)
	b := base.Apply(stale).Apply(completed).Apply(current)
	c := base.Apply(current).Apply(completed)

	for _, v := range []OrderView{a, b, c} {
		o, ok := v.Find("o3")
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, o.Status)
	}

	mid := base.Apply(completed).Apply(stale)
	o, _ := mid.Find("o3")
	assert.Equal(t, StatusCompleted, o.Status, "stale read must not undo the optimistic patch")
}

func TestOrderViewDropsOlderLoad(t *testing.T) {
	start := time.Now()
	older := OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1")[1:], LoadedAt: start}
	newer := OrdersLoaded{ShopID: "s1", Orders: sampleOrders("s1"), LoadedAt: start.Add(time.Second)}

	v := NewOrderView("s1").Apply(newer)
	after := v.Apply(older)
	assert.Equal(t, v.Version(), after.Version())
	assert.Equal(t, 3, after.Len())
	assert.Equal(t, newer.LoadedAt, after.LoadedAt())

	// A completion cleared by a newer load is not undone by an older one.
	completed := OrderCompleted{OrderID: "o3", ShopID: "s1", CompletedAt: start.Add(time.Second)}
	fresh := sampleOrders("s1")
	fresh[0].Status = StatusCompleted
	current := OrdersLoaded{ShopID: "s1", Orders: fresh, LoadedAt: start.Add(2 * time.Second)}
	v = NewOrderView("s1").Apply(older).Apply(completed).Apply(current).Apply(older)
	o, ok := v.Find("o3")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, o.Status)
}

func TestParseOrderFilter(t *testing.T) {
	f, err := ParseOrderFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterPending, f)

	f, err = ParseOrderFilter("all")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseOrderFilter("cancelled")
	assert.ErrorIs(t, err, ErrValidation)
}
