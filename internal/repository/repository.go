package repository

import (
	"context"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/shopspring/decimal"
)

// OrderRepository handles persistence for print orders.
type OrderRepository interface {
	// Create inserts the order with both statuses pending and returns it with
	// the id and timestamps assigned by the store.
	Create(ctx context.Context, order entity.Order) (entity.Order, error)
	FindByID(ctx context.Context, orderID string) (entity.Order, error)
	// FindByShop returns a shop's orders with customer display fields, newest first.
	FindByShop(ctx context.Context, shopID string) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, orderID string, status entity.PaymentStatus) error
}

// ShopRepository reads shops and updates their map location.
type ShopRepository interface {
	FindByID(ctx context.Context, shopID string) (entity.Shop, error)
	FindByOwner(ctx context.Context, ownerID string) ([]entity.Shop, error)
	UpdateLocation(ctx context.Context, shopID string, loc entity.Location, address string) error
}

// PricingRepository handles a shop's price list.
type PricingRepository interface {
	FindByShop(ctx context.Context, shopID string) ([]entity.PricingEntry, error)
	// FindPrice returns an invalid NullDecimal when the shop has no price for the pair.
	FindPrice(ctx context.Context, shopID string, key entity.PricingKey) (decimal.NullDecimal, error)
	Insert(ctx context.Context, entry entity.PricingEntry) (entity.PricingEntry, error)
	Update(ctx context.Context, entry entity.PricingEntry) error
	Delete(ctx context.Context, shopID, entryID string) error
}

// EventStore appends and reads aggregate event streams. SaveEvents fails
// with entity.ErrVersionConflict when the stream is not at expectedVersion.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error)
}
