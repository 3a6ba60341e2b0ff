// Package memory is an in-process store implementing the repository
// interfaces. It backs the api command when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps every table in maps guarded by one mutex. OnChange, when set,
// is called after each order write the way the row trigger would notify.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]entity.Order
	shops    map[string]entity.Shop
	pricing  map[string]entity.PricingEntry
	profiles map[string]profile
	events   map[string][]entity.EventStoreRecord
	now      func() time.Time

	OnChange func(change entity.OrderChanged)
}

type profile struct {
	name  string
	email string
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[string]entity.Order),
		shops:    make(map[string]entity.Shop),
		pricing:  make(map[string]entity.PricingEntry),
		profiles: make(map[string]profile),
		events:   make(map[string][]entity.EventStoreRecord),
		now:      time.Now,
	}
}

// PutShop inserts or replaces a shop.
func (s *Store) PutShop(shop entity.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = s.now()
	}
	s.shops[shop.ID] = shop
}

// PutProfile inserts or replaces a customer profile.
func (s *Store) PutProfile(id, name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = profile{name: name, email: email}
}

func (s *Store) Orders() repository.OrderRepository    { return orderRepo{s} }
func (s *Store) Shops() repository.ShopRepository      { return shopRepo{s} }
func (s *Store) Pricing() repository.PricingRepository { return pricingRepo{s} }
func (s *Store) Events() repository.EventStore          { return eventStore{s} }

func (s *Store) notify(op entity.ChangeOp, o entity.Order) {
	if s.OnChange != nil {
		s.OnChange(entity.OrderChanged{Op: op, ShopID: o.ShopID, OrderID: o.ID})
	}
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o entity.Order) (entity.Order, error) {
	r.s.mu.Lock()
	o.ID = uuid.NewString()
	o.Status = entity.StatusPending
	o.PaymentStatus = entity.PaymentPending
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	r.s.orders[o.ID] = o
	r.s.mu.Unlock()

	r.s.notify(entity.ChangeInsert, o)
	return o, nil
}

func (r orderRepo) FindByID(_ context.Context, orderID string) (entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return entity.Order{}, fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
	}
	return r.s.withProfile(o), nil
}

func (r orderRepo) FindByShop(_ context.Context, shopID string) ([]entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []entity.Order{}
	for _, o := range r.s.orders {
		if o.ShopID != shopID {
			continue
		}
		o = r.s.withProfile(o)
		if o.CustomerName == "" {
			o.CustomerName = "Unknown Customer"
		}
		if o.CustomerEmail == "" {
			o.CustomerEmail = "Unknown Email"
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) UpdateStatus(_ context.Context, orderID string, status entity.OrderStatus) error {
	return r.update(orderID, func(o *entity.Order) { o.Status = status })
}

func (r orderRepo) UpdatePaymentStatus(_ context.Context, orderID string, status entity.PaymentStatus) error {
	return r.update(orderID, func(o *entity.Order) { o.PaymentStatus = status })
}

func (r orderRepo) update(orderID string, fn func(o *entity.Order)) error {
	r.s.mu.Lock()
	o, ok := r.s.orders[orderID]
	if !ok {
		r.s.mu.Unlock()
		return fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
	}
	fn(&o)
	o.UpdatedAt = r.s.now()
	r.s.orders[orderID] = o
	r.s.mu.Unlock()

	r.s.notify(entity.ChangeUpdate, o)
	return nil
}

func (s *Store) withProfile(o entity.Order) entity.Order {
	p := s.profiles[o.CustomerID]
	o.CustomerName = p.name
	o.CustomerEmail = p.email
	return o
}

type shopRepo struct{ s *Store }

func (r shopRepo) FindByID(_ context.Context, shopID string) (entity.Shop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	shop, ok := r.s.shops[shopID]
	if !ok {
		return entity.Shop{}, fmt.Errorf("shop %s: %w", shopID, entity.ErrNotFound)
	}
	return shop, nil
}

func (r shopRepo) FindByOwner(_ context.Context, ownerID string) ([]entity.Shop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.Shop
	for _, shop := range r.s.shops {
		if shop.OwnerID == ownerID {
			out = append(out, shop)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r shopRepo) UpdateLocation(_ context.Context, shopID string, loc entity.Location, address string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	shop, ok := r.s.shops[shopID]
	if !ok {
		return fmt.Errorf("shop %s: %w", shopID, entity.ErrNotFound)
	}
	shop.Location = &loc
	if address != "" {
		shop.Address = address
	}
	shop.UpdatedAt = r.s.now()
	r.s.shops[shopID] = shop
	return nil
}

type pricingRepo struct{ s *Store }

func (r pricingRepo) FindByShop(_ context.Context, shopID string) ([]entity.PricingEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []entity.PricingEntry{}
	for _, e := range r.s.pricing {
		if e.ShopID == shopID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaperSize != out[j].PaperSize {
			return out[i].PaperSize < out[j].PaperSize
		}
		return out[i].ColorMode < out[j].ColorMode
	})
	return out, nil
}

func (r pricingRepo) FindPrice(_ context.Context, shopID string, key entity.PricingKey) (decimal.NullDecimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.pricing {
		if e.ShopID == shopID && e.Key() == key {
			return decimal.NewNullDecimal(e.PricePerPage), nil
		}
	}
	return decimal.NullDecimal{}, nil
}

func (r pricingRepo) Insert(_ context.Context, e entity.PricingEntry) (entity.PricingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.conflict(e) {
		return entity.PricingEntry{}, &entity.DuplicateConfigError{Key: e.Key(), Stored: true}
	}
	e.ID = uuid.NewString()
	r.s.pricing[e.ID] = e
	return e, nil
}

func (r pricingRepo) Update(_ context.Context, e entity.PricingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.pricing[e.ID]
	if !ok || current.ShopID != e.ShopID {
		return fmt.Errorf("pricing entry %s: %w", e.ID, entity.ErrNotFound)
	}
	if r.s.conflict(e) {
		return &entity.DuplicateConfigError{Key: e.Key(), Stored: true}
	}
	r.s.pricing[e.ID] = e
	return nil
}

func (r pricingRepo) Delete(_ context.Context, shopID, entryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.pricing[entryID]
	if !ok || current.ShopID != shopID {
		return fmt.Errorf("pricing entry %s: %w", entryID, entity.ErrNotFound)
	}
	delete(r.s.pricing, entryID)
	return nil
}

// conflict mirrors UNIQUE(shop_id, paper_size, color_mode).
func (s *Store) conflict(e entity.PricingEntry) bool {
	for id, other := range s.pricing {
		if id != e.ID && other.ShopID == e.ShopID && other.Key() == e.Key() {
			return true
		}
	}
	return false
}

type eventStore struct{ s *Store }

func (e eventStore) SaveEvents(_ context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	stream := e.s.events[streamID]
	if current := len(stream); current != expectedVersion {
		return fmt.Errorf("%w: expected version %d, got %d", entity.ErrVersionConflict, expectedVersion, current)
	}
	now := e.s.now()
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		stream = append(stream, entity.EventStoreRecord{
			ID:         uuid.NewString(),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    expectedVersion + i + 1,
			EventType:  event.EventType(),
			Payload:    payload,
			CreatedAt:  now,
		})
	}
	e.s.events[streamID] = stream
	return nil
}

func (e eventStore) LoadEvents(_ context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	return append([]entity.EventStoreRecord(nil), e.s.events[streamID]...), nil
}
