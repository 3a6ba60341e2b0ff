package memory

import (
	"context"
	"testing"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_OrdersNewestFirstWithFallbacks(t *testing.T) {
	s := NewStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }
	s.PutProfile("cust-1", "Asha", "asha@example.com")

	var changes []entity.OrderChanged
	s.OnChange = func(c entity.OrderChanged) { changes = append(changes, c) }

	ctx := context.Background()
	first, err := s.Orders().Create(ctx, entity.Order{CustomerID: "cust-1", ShopID: "shop-1"})
	require.NoError(t, err)
	second, err := s.Orders().Create(ctx, entity.Order{CustomerID: "cust-2", ShopID: "shop-1"})
	require.NoError(t, err)
	_, err = s.Orders().Create(ctx, entity.Order{CustomerID: "cust-1", ShopID: "shop-2"})
	require.NoError(t, err)

	orders, err := s.Orders().FindByShop(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, "Unknown Customer", orders[0].CustomerName)
	assert.Equal(t, first.ID, orders[1].ID)
	assert.Equal(t, "asha@example.com", orders[1].CustomerEmail)

	require.NoError(t, s.Orders().UpdateStatus(ctx, first.ID, entity.StatusCompleted))
	assert.ErrorIs(t, s.Orders().UpdateStatus(ctx, "nope", entity.StatusCompleted), entity.ErrNotFound)

	require.Len(t, changes, 4)
	assert.Equal(t, entity.OrderChanged{Op: entity.ChangeUpdate, ShopID: "shop-1", OrderID: first.ID}, changes[3])
}

func TestStore_PricingUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	entry := entity.PricingEntry{ShopID: "shop-1", PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(2)}

	saved, err := s.Pricing().Insert(ctx, entry)
	require.NoError(t, err)

	_, err = s.Pricing().Insert(ctx, entry)
	assert.ErrorIs(t, err, entity.ErrDuplicateConfig)

	other := entry
	other.ShopID = "shop-2"
	_, err = s.Pricing().Insert(ctx, other)
	assert.NoError(t, err, "pairs are unique per shop")

	price, err := s.Pricing().FindPrice(ctx, "shop-1", entry.Key())
	require.NoError(t, err)
	assert.True(t, price.Valid)

	assert.ErrorIs(t, s.Pricing().Delete(ctx, "shop-2", saved.ID), entity.ErrNotFound)
	require.NoError(t, s.Pricing().Delete(ctx, "shop-1", saved.ID))
}

func TestStore_EventsOptimisticVersioning(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	events := s.Events()

	placed := entity.OrderPlaced{OrderID: "o1", ShopID: "shop-1", Total: decimal.NewFromInt(4)}
	require.NoError(t, events.SaveEvents(ctx, "o1", entity.CheckoutStream, 0, []entity.Event{placed}))

	err := events.SaveEvents(ctx, "o1", entity.CheckoutStream, 0, []entity.Event{placed})
	assert.ErrorIs(t, err, entity.ErrVersionConflict)

	require.NoError(t, events.SaveEvents(ctx, "o1", entity.CheckoutStream, 1, []entity.Event{entity.PaymentConfirmed{OrderID: "o1"}}))

	records, err := events.LoadEvents(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Version)
	assert.Equal(t, "OrderPlaced", records[0].EventType)
	assert.Equal(t, 2, records[1].Version)

	none, err := events.LoadEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
