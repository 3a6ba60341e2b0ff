package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/messaging"
	"github.com/egannguyen/instaprint/internal/repository"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the default edge length in pixels of payment QR images.
const QRSize = 256

// Quote is the price of a job at a shop. PricePerPage and Total are
// invalid when the shop has no pricing for the job's paper size and color.
type Quote struct {
	ShopID         string              `json:"shop_id"`
	Spec           entity.PrintSpec    `json:"specifications"`
	PricePerPage   decimal.NullDecimal `json:"price_per_page"`
	EffectivePages int64               `json:"effective_pages"`
	Total          decimal.NullDecimal `json:"total"`
}

// CheckoutService orchestrates pricing, order creation and payment
// confirmation. Checkout state is kept as an event stream per order; the
// print_jobs row carries the payment status the shop sees.
type CheckoutService struct {
	orders    repository.OrderRepository
	shops     repository.ShopRepository
	pricing   repository.PricingRepository
	events    repository.EventStore
	publisher messaging.Publisher
	now       func() time.Time
}

func NewCheckoutService(
	orders repository.OrderRepository,
	shops repository.ShopRepository,
	pricing repository.PricingRepository,
	events repository.EventStore,
	publisher messaging.Publisher,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		shops:     shops,
		pricing:   pricing,
		events:    events,
		publisher: publisher,
		now:       time.Now,
	}
}

// Quote resolves the shop's price for spec. A missing price is not an error.
func (s *CheckoutService) Quote(ctx context.Context, shopID string, spec entity.PrintSpec) (Quote, error) {
	if shopID == "" {
		return Quote{}, fmt.Errorf("%w: shop id is required", entity.ErrValidation)
	}
	if err := spec.Validate(); err != nil {
		return Quote{}, err
	}

	price, err := s.pricing.FindPrice(ctx, shopID, entity.PricingKey{PaperSize: spec.PaperSize, ColorMode: spec.ColorMode})
	if err != nil {
		return Quote{}, fmt.Errorf("failed to resolve price: %w", err)
	}

	q := Quote{ShopID: shopID, Spec: spec, PricePerPage: price, EffectivePages: entity.EffectivePages(spec)}
	if total, err := entity.TotalPrice(spec, price); err == nil {
		q.Total = decimal.NewNullDecimal(total)
	}
	return q, nil
}

// CreateOrder persists a pending order and returns its checkout.
func (s *CheckoutService) CreateOrder(ctx context.Context, cmd *entity.PlaceOrder) (*entity.Checkout, error) {
	slog.Info("Service: Creating order", "shop_id", cmd.ShopID, "customer_id", cmd.CustomerID)

	switch {
	case cmd.CustomerID == "":
		return nil, fmt.Errorf("%w: customer id is required", entity.ErrValidation)
	case cmd.ShopID == "":
		return nil, fmt.Errorf("%w: shop id is required", entity.ErrValidation)
	case cmd.FilePath == "":
		return nil, fmt.Errorf("%w: document is required", entity.ErrValidation)
	}

	quote, err := s.Quote(ctx, cmd.ShopID, cmd.Spec)
	if err != nil {
		return nil, err
	}
	if !quote.Total.Valid {
		return nil, fmt.Errorf("%w: %w", entity.ErrValidation, entity.ErrPriceUnavailable)
	}

	shop, err := s.shops.FindByID(ctx, cmd.ShopID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, entity.Order{
		CustomerID:   cmd.CustomerID,
		ShopID:       cmd.ShopID,
		FilePath:     cmd.FilePath,
		Spec:         cmd.Spec,
		PricePerPage: quote.PricePerPage,
		Price:        quote.Total.Decimal,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	placed := entity.PlacedEvent(order)
	checkout := entity.NewCheckout()
	checkout.UPIID = shop.UPIID
	if err := checkout.ApplyEvent(placed); err != nil {
		return nil, err
	}
	// Without a stream the checkout is rebuilt from the row at version 0.
	if err := s.events.SaveEvents(ctx, order.ID, entity.CheckoutStream, 0, []entity.Event{placed}); err != nil {
		slog.Error("Failed to append OrderPlaced", "order_id", order.ID, "err", err)
	} else {
		checkout.SetVersion(1)
	}

	// The row is durable; downstream consumers catch up from the change feed.
	if err := s.publisher.PublishEvent(ctx, messaging.OrdersPlacedTopic, order.ID, placed); err != nil {
		slog.Error("Failed to publish OrderPlaced", "order_id", order.ID, "err", err)
	}

	slog.Info("Order created", "order_id", order.ID, "total", order.Price.StringFixed(2))
	return checkout, nil
}

// Checkout rebuilds the checkout state of a stored order.
func (s *CheckoutService) Checkout(ctx context.Context, orderID string) (*entity.Checkout, error) {
	_, checkout, err := s.load(ctx, orderID)
	return checkout, err
}

func (s *CheckoutService) load(ctx context.Context, orderID string) (entity.Order, *entity.Checkout, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return entity.Order{}, nil, err
	}
	shop, err := s.shops.FindByID(ctx, order.ShopID)
	if err != nil {
		return entity.Order{}, nil, err
	}
	records, err := s.events.LoadEvents(ctx, orderID)
	if err != nil {
		return entity.Order{}, nil, fmt.Errorf("failed to load checkout events: %w", err)
	}
	if len(records) == 0 {
		return order, entity.CheckoutFromOrder(order, shop.UPIID), nil
	}

	checkout := entity.NewCheckout()
	checkout.UPIID = shop.UPIID
	if err := entity.Rehydrate(checkout, records); err != nil {
		return entity.Order{}, nil, fmt.Errorf("failed to rehydrate checkout %s: %w", orderID, err)
	}
	return order, checkout, nil
}

// ConfirmPayment records a payment reported by the customer ("mark paid")
// or by the checkout widget. A widget failure leaves the order unpaid.
// Confirmations race on the stream version; the loser returns the
// winner's state.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, orderID string, source entity.PaymentSource, succeeded bool) (*entity.Checkout, error) {
	order, checkout, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !succeeded {
		slog.Warn("Payment widget reported failure", "order_id", orderID, "source", source)
		return checkout, nil
	}
	if checkout.State == entity.CheckoutPaymentConfirmed {
		// The stream may be ahead of the row after a failed row update.
		if order.PaymentStatus != entity.PaymentCompleted {
			if err := s.orders.UpdatePaymentStatus(ctx, orderID, entity.PaymentCompleted); err != nil {
				return nil, fmt.Errorf("failed to confirm payment: %w", err)
			}
		}
		return checkout, nil
	}

	confirmed := entity.PaymentConfirmed{OrderID: orderID, Source: source, ConfirmedAt: s.now()}
	pending := []entity.Event{confirmed}
	if checkout.GetVersion() == 0 {
		pending = []entity.Event{entity.PlacedEvent(order), confirmed}
	}
	err = s.events.SaveEvents(ctx, orderID, entity.CheckoutStream, checkout.GetVersion(), pending)
	if errors.Is(err, entity.ErrVersionConflict) {
		slog.Info("Concurrent payment confirmation", "order_id", orderID, "source", source)
		_, current, loadErr := s.load(ctx, orderID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.State == entity.CheckoutPaymentConfirmed {
			return current, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := s.orders.UpdatePaymentStatus(ctx, orderID, entity.PaymentCompleted); err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if err := checkout.ApplyEvent(confirmed); err != nil {
		return nil, err
	}
	checkout.SetVersion(checkout.GetVersion() + len(pending))
	if err := s.publisher.PublishEvent(ctx, messaging.PaymentConfirmedTopic, orderID, confirmed); err != nil {
		slog.Error("Failed to publish PaymentConfirmed", "order_id", orderID, "err", err)
	}

	slog.Info("Payment confirmed", "order_id", orderID, "source", source)
	return checkout, nil
}

// PaymentURI returns the UPI deep link for an order.
func (s *CheckoutService) PaymentURI(ctx context.Context, orderID string) (string, error) {
	checkout, err := s.Checkout(ctx, orderID)
	if err != nil {
		return "", err
	}
	uri, ok := checkout.PaymentURI()
	if !ok {
		return "", fmt.Errorf("payment details for order %s: %w", orderID, entity.ErrNotFound)
	}
	return uri, nil
}

// PaymentQR renders the order's UPI deep link as a PNG QR code.
func (s *CheckoutService) PaymentQR(ctx context.Context, orderID string, size int) ([]byte, error) {
	uri, err := s.PaymentURI(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = QRSize
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment QR: %w", err)
	}
	return png, nil
}
