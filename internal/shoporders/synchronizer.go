// Package shoporders keeps a shop operator's order list in sync with the
// store and drives the pending to completed transition.
package shoporders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/egannguyen/instaprint/internal/changefeed"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/messaging"
	"github.com/egannguyen/instaprint/internal/notify"
	"github.com/egannguyen/instaprint/internal/repository"
	"github.com/egannguyen/instaprint/internal/retry"
	"github.com/egannguyen/instaprint/internal/storage"
	"github.com/google/uuid"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("synchronizer closed")

const (
	// DefaultThrottle suppresses unforced refreshes this soon after the last one.
	DefaultThrottle = 5 * time.Second
	// DefaultSessionIdle is twice the consumer group session timeout.
	DefaultSessionIdle = 2 * time.Minute
)

// State is the connection state shown to the operator.
type State string

const (
	StateSelecting State = "selecting"
	StateLoading   State = "loading"
	StateRetrying  State = "retrying"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateClosed    State = "closed"
)

// Deps are the collaborators of a synchronizer.
type Deps struct {
	Orders     repository.OrderRepository
	Shops      repository.ShopRepository
	Subscriber messaging.Subscriber
	Dispatcher notify.Dispatcher
	Signer     storage.Signer
}

// Config tunes timing; zero values take the defaults.
type Config struct {
	Throttle time.Duration
	Retry    retry.Policy
	Now      func() time.Time
	// SessionIdle is how long a registry keeps a session nobody asks for.
	SessionIdle time.Duration
	// OnCompleted is called after an order was marked completed.
	OnCompleted func(order entity.Order)
}

func (c Config) withDefaults() Config {
	if c.Throttle == 0 {
		c.Throttle = DefaultThrottle
	}
	if c.Retry == (retry.Policy{}) {
		c.Retry = retry.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.SessionIdle <= 0 {
		c.SessionIdle = DefaultSessionIdle
	}
	return c
}

// Status is a snapshot of a synchronizer for display.
type Status struct {
	State       State         `json:"state"`
	Shop        *entity.Shop  `json:"shop,omitempty"`
	Shops       []entity.Shop `json:"shops,omitempty"`
	Retries     int           `json:"retries"`
	MaxRetries  int           `json:"max_retries"`
	LastError   string        `json:"last_error,omitempty"`
	LastRefresh time.Time     `json:"last_refresh"`
	Version     int           `json:"version"`
	Orders      int           `json:"orders"`
}

// Preview is what the operator sees before accepting a job.
type Preview struct {
	Order     entity.Order `json:"order"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Synchronizer follows one shop's orders for one operator. It owns a
// refresh worker and, once subscribed, a change-feed consumer; Close stops
// both and waits for them.
type Synchronizer struct {
	deps    Deps
	cfg     Config
	ownerID string
	groupID string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}

	mu          sync.Mutex
	shop        entity.Shop
	shops       []entity.Shop
	view        entity.OrderView
	state       State
	retries     int
	lastErr     error
	lastRefresh time.Time
	loadSeq     uint64
	appliedSeq  uint64
	cycle       int
	cycleCancel context.CancelFunc
	closed      bool

	subMu sync.Mutex
	sub   messaging.Subscription
}

// New creates a synchronizer for ownerID. Nothing runs until Start.
func New(deps Deps, cfg Config, ownerID string) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		deps:    deps,
		cfg:     cfg.withDefaults(),
		ownerID: ownerID,
		groupID: "shoporders-" + uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		trigger: make(chan struct{}, 1),
		state:   StateSelecting,
	}
}

// Start resolves the shop and begins loading in the background. With an
// empty shopID a single owned shop is selected automatically; several owned
// shops yield ErrSelectionRequired and Status lists them. A given shopID
// must belong to the operator.
func (s *Synchronizer) Start(ctx context.Context, shopID string) error {
	shops, err := s.deps.Shops.FindByOwner(ctx, s.ownerID)
	if err != nil {
		return fmt.Errorf("failed to load shops: %w", err)
	}

	shop, err := selectShop(shops, shopID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.shops = shops
	if err != nil {
		return err
	}
	if s.view.ShopID() != "" {
		return fmt.Errorf("%w: already following shop %s", entity.ErrInvalidTransition, s.view.ShopID())
	}

	s.shop = shop
	s.view = entity.NewOrderView(shop.ID)
	s.wg.Add(1)
	go s.worker()
	s.restartLocked()

	slog.Info("Shop order sync started", "shop_id", shop.ID, "owner_id", s.ownerID)
	return nil
}

func selectShop(owned []entity.Shop, shopID string) (entity.Shop, error) {
	if shopID != "" {
		for _, shop := range owned {
			if shop.ID == shopID {
				return shop, nil
			}
		}
		return entity.Shop{}, fmt.Errorf("shop %s for this operator: %w", shopID, entity.ErrNotFound)
	}
	switch len(owned) {
	case 0:
		return entity.Shop{}, fmt.Errorf("no shops for this operator: %w", entity.ErrNotFound)
	case 1:
		return owned[0], nil
	}
	return entity.Shop{}, entity.ErrSelectionRequired
}

// Resume is called when the operator returns to the page: the retry
// counter is reset and a fresh load and subscription are forced.
func (s *Synchronizer) Resume() error {
	return s.restart("resume")
}

// Retry clears a failed state and starts over with a fresh retry budget.
func (s *Synchronizer) Retry() error {
	return s.restart("retry")
}

func (s *Synchronizer) restart(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.view.ShopID() == "" {
		return entity.ErrSelectionRequired
	}
	slog.Info("Restarting shop order sync", "shop_id", s.shop.ID, "reason", reason)
	s.restartLocked()
	return nil
}

// restartLocked cancels any running connect cycle and starts a new one.
func (s *Synchronizer) restartLocked() {
	if s.cycleCancel != nil {
		s.cycleCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cycleCancel = cancel
	s.cycle++
	s.retries = 0
	s.lastErr = nil
	s.state = StateLoading

	s.wg.Add(1)
	go s.connect(ctx, s.cycle)
}

// connect subscribes and loads, retrying both under the retry policy.
func (s *Synchronizer) connect(ctx context.Context, cycle int) {
	defer s.wg.Done()

	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		if err := s.subscribe(); err != nil {
			return err
		}
		return s.load(ctx)
	}, func(n int, err error, wait time.Duration) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.cycle != cycle {
			return
		}
		s.state = StateRetrying
		s.retries = n
		s.lastErr = err
		slog.Warn("Shop order sync failed, retrying", "shop_id", s.shop.ID, "retry", n, "wait", wait, "err", err)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.cycle != cycle || ctx.Err() != nil {
		return
	}
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		slog.Error("Shop order sync gave up", "shop_id", s.shop.ID, "retries", s.retries, "err", err)
		return
	}
	s.state = StateReady
	s.retries = 0
	s.lastErr = nil
}

func (s *Synchronizer) subscribe() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.sub != nil {
		return nil
	}
	sub, err := s.deps.Subscriber.Subscribe(s.ctx, messaging.ChangesTopic, s.groupID, s.handleChange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to order changes: %w", err)
	}
	s.sub = sub
	return nil
}

// handleChange forces a refresh for changes to this shop. It never patches
// the view from the notification itself.
func (s *Synchronizer) handleChange(_ context.Context, payload []byte) error {
	change, err := changefeed.Decode(payload)
	if err != nil {
		return err
	}
	if change.ShopID != s.shop.ID {
		return nil
	}
	slog.Debug("Order change received", "shop_id", change.ShopID, "order_id", change.OrderID, "op", change.Op)
	s.kick()
	return nil
}

// kick schedules a forced refresh. Kicks that arrive while one is already
// pending are merged into it.
func (s *Synchronizer) kick() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.trigger:
			if err := s.load(s.ctx); err != nil && s.ctx.Err() == nil {
				slog.Warn("Failed to refresh orders", "shop_id", s.shop.ID, "err", err)
			}
		}
	}
}

// load reads the shop's orders and feeds them through the view reducer.
// Reads may overlap; one that finishes after a later-issued read is dropped.
func (s *Synchronizer) load(ctx context.Context) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	issued := s.cfg.Now()
	s.mu.Unlock()

	orders, err := s.deps.Orders.FindByShop(ctx, s.shop.ID)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if seq < s.appliedSeq {
		slog.Debug("Dropping superseded order load", "shop_id", s.shop.ID, "seq", seq, "applied", s.appliedSeq)
		return nil
	}
	s.appliedSeq = seq
	s.view = s.view.Apply(entity.OrdersLoaded{ShopID: s.shop.ID, Orders: orders, LoadedAt: issued})
	s.lastRefresh = s.cfg.Now()
	return nil
}

// Refresh reloads the orders. Unless force is set it does nothing when the
// last refresh finished within the throttle window, and reports false.
func (s *Synchronizer) Refresh(ctx context.Context, force bool) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if s.view.ShopID() == "" {
		s.mu.Unlock()
		return false, entity.ErrSelectionRequired
	}
	if !force && !s.lastRefresh.IsZero() && s.cfg.Now().Sub(s.lastRefresh) < s.cfg.Throttle {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkCompleted writes status=completed, patches the view and asks for the
// customer notification. A failed notification is returned wrapped in
// entity.ErrNotificationDispatch; the completion itself stands. Completing
// an order the view already shows as completed is a no-op.
func (s *Synchronizer) MarkCompleted(ctx context.Context, orderID string) error {
	order, err := s.find(orderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case entity.StatusPending:
	case entity.StatusCompleted:
		return nil
	default:
		return fmt.Errorf("%w: order %s is %s", entity.ErrInvalidTransition, orderID, order.Status)
	}

	if err := s.deps.Orders.UpdateStatus(ctx, orderID, entity.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}

	now := s.cfg.Now()
	s.mu.Lock()
	if !s.closed {
		s.view = s.view.Apply(entity.OrderCompleted{OrderID: orderID, ShopID: s.shop.ID, CompletedAt: now})
	}
	s.mu.Unlock()
	slog.Info("Order completed", "order_id", orderID, "shop_id", order.ShopID)

	var dispatchErr error
	if s.deps.Dispatcher != nil {
		if err := s.deps.Dispatcher.Dispatch(ctx, orderID); err != nil {
			slog.Error("Failed to send completion notification", "order_id", orderID, "err", err)
			dispatchErr = fmt.Errorf("%w: %w", entity.ErrNotificationDispatch, err)
		}
	}

	if s.cfg.OnCompleted != nil {
		order.Status = entity.StatusCompleted
		order.UpdatedAt = now
		s.cfg.OnCompleted(order)
	}
	s.kick()
	return dispatchErr
}

// Preview returns a signed link to the order's document and its specification.
func (s *Synchronizer) Preview(ctx context.Context, orderID string) (Preview, error) {
	order, err := s.find(orderID)
	if err != nil {
		return Preview{}, err
	}
	if s.deps.Signer == nil {
		return Preview{}, fmt.Errorf("document storage: %w", entity.ErrStoreUnavailable)
	}
	url, err := s.deps.Signer.SignedURL(ctx, order.FilePath, storage.PreviewExpiry)
	if err != nil {
		return Preview{}, fmt.Errorf("%w: failed to sign document url: %w", entity.ErrStoreUnavailable, err)
	}
	return Preview{Order: order, URL: url, ExpiresAt: s.cfg.Now().Add(storage.PreviewExpiry)}, nil
}

// Accept is the preview's "accept" action.
func (s *Synchronizer) Accept(ctx context.Context, orderID string) error {
	return s.MarkCompleted(ctx, orderID)
}

func (s *Synchronizer) find(orderID string) (entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return entity.Order{}, ErrClosed
	}
	order, ok := s.view.Find(orderID)
	if !ok {
		return entity.Order{}, fmt.Errorf("order %s in shop %s: %w", orderID, s.shop.ID, entity.ErrNotFound)
	}
	return order, nil
}

// Orders returns the current orders that match filter.
func (s *Synchronizer) Orders(filter entity.OrderFilter) []entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Orders(filter)
}

func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:       s.state,
		Retries:     s.retries,
		MaxRetries:  s.cfg.Retry.MaxRetries,
		LastRefresh: s.lastRefresh,
		Version:     s.view.Version(),
		Orders:      s.view.Len(),
	}
	if s.view.ShopID() != "" {
		shop := s.shop
		st.Shop = &shop
	} else {
		st.Shops = append([]entity.Shop(nil), s.shops...)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Close stops the subscription, pending retries and the refresh worker.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosed
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Close()
	s.sub = nil
	return err
}
