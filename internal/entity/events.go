package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a domain event.
type Event interface {
	EventType() string
}

// --- Events ---

// OrderPlaced is emitted when a print order row has been created.
type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	ShopID   string          `json:"shop_id"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// PaymentSource tells which path confirmed a payment.
type PaymentSource string

const (
	PaymentSourceManual PaymentSource = "manual"
	PaymentSourceWidget PaymentSource = "widget"
)

// PaymentConfirmed is emitted when payment_status moves to completed.
type PaymentConfirmed struct {
	OrderID     string        `json:"order_id"`
	Source      PaymentSource `json:"source"`
	ConfirmedAt time.Time     `json:"confirmed_at"`
}

func (e PaymentConfirmed) EventType() string { return "PaymentConfirmed" }

// OrdersLoaded carries a fresh read of a shop's orders, newest first.
type OrdersLoaded struct {
	ShopID   string    `json:"shop_id"`
	Orders   []Order   `json:"orders"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (e OrdersLoaded) EventType() string { return "OrdersLoaded" }

// OrderCompleted is emitted once the store accepted status=completed.
type OrderCompleted struct {
	OrderID     string    `json:"order_id"`
	ShopID      string    `json:"shop_id"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e OrderCompleted) EventType() string { return "OrderCompleted" }

// ChangeOp is the kind of row change reported by the store.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
)

// OrderChanged is the push notification for a print_jobs row change.
type OrderChanged struct {
	Op      ChangeOp `json:"op"`
	ShopID  string   `json:"shop_id"`
	OrderID string   `json:"order_id"`
}

func (e OrderChanged) EventType() string { return "OrderChanged" }
