package entity

import (
	"fmt"
	"time"
)

// OrderFilter selects which orders of a view are visible.
type OrderFilter string

const (
	FilterPending   OrderFilter = "pending"
	FilterCompleted OrderFilter = "completed"
	FilterAll       OrderFilter = "all"
)

// ParseOrderFilter accepts the filter tags used by the operator UI.
// An empty string means pending, the default tab.
func ParseOrderFilter(s string) (OrderFilter, error) {
	switch OrderFilter(s) {
	case "":
		return FilterPending, nil
	case FilterPending, FilterCompleted, FilterAll:
		return OrderFilter(s), nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", ErrValidation, s)
}

// OrderView is an immutable snapshot of one shop's orders. Refresh results
// and optimistic completions both go through Apply, so the view converges
// whichever of the two arrives first.
type OrderView struct {
	shopID   string
	orders   []Order
	loadedAt time.Time
	version  int
	// completions made locally that a read issued before them cannot know about.
	completions map[string]time.Time
}

// NewOrderView creates an empty view scoped to shopID.
func NewOrderView(shopID string) OrderView {
	return OrderView{shopID: shopID}
}

func (v OrderView) ShopID() string      { return v.shopID }
func (v OrderView) Version() int        { return v.version }
func (v OrderView) LoadedAt() time.Time { return v.loadedAt }
func (v OrderView) Len() int            { return len(v.orders) }

// Orders returns a copy of the orders matching filter, newest first.
func (v OrderView) Orders(filter OrderFilter) []Order {
	out := make([]Order, 0, len(v.orders))
	for _, o := range v.orders {
		if filter == FilterAll || string(o.Status) == string(filter) {
			out = append(out, o)
		}
	}
	return out
}

// Find looks an order up by id.
func (v OrderView) Find(orderID string) (Order, bool) {
	for _, o := range v.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return Order{}, false
}

// Apply returns the view that results from applying e; v itself is not modified.
// Events for another shop, loads issued before the current snapshot and
// events that change nothing return v unchanged.
func (v OrderView) Apply(e Event) OrderView {
	switch e := e.(type) {
	case OrdersLoaded:
		if e.ShopID != v.shopID || e.LoadedAt.Before(v.loadedAt) {
			return v
		}
		next := v
		next.orders = append([]Order(nil), e.Orders...)
		next.loadedAt = e.LoadedAt
		next.completions = nil
		for id, at := range v.completions {
			if !at.After(e.LoadedAt) {
				// The read was issued after the write; trust the store.
				continue
			}
			if next.completions == nil {
				next.completions = make(map[string]time.Time)
			}
			next.completions[id] = at
			next.orders = markCompleted(next.orders, id, at)
		}
		next.version++
		return next
	case OrderCompleted:
		if e.ShopID != "" && e.ShopID != v.shopID {
			return v
		}
		current, ok := v.Find(e.OrderID)
		if !ok || current.Status == StatusCompleted {
			return v
		}
		next := v
		next.orders = markCompleted(append([]Order(nil), v.orders...), e.OrderID, e.CompletedAt)
		next.completions = make(map[string]time.Time, len(v.completions)+1)
		for id, at := range v.completions {
			next.completions[id] = at
		}
		next.completions[e.OrderID] = e.CompletedAt
		next.version++
		return next
	}
	return v
}

func markCompleted(orders []Order, orderID string, at time.Time) []Order {
	for i := range orders {
		if orders[i].ID == orderID {
			orders[i].Status = StatusCompleted
			if at.After(orders[i].UpdatedAt) {
				orders[i].UpdatedAt = at
			}
		}
	}
	return orders
}
