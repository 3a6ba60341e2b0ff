// Package mailer sends the "ready for collection" email for a completed order.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
)

// DedupStore suppresses repeated sends for the same key.
type DedupStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Service looks up the order and shop, renders the email and sends it once.
type Service struct {
	orders repository.OrderRepository
	shops  repository.ShopRepository
	sender Sender
	dedup  DedupStore
	from   string
}

// NewService builds a mailer; dedup may be nil, in which case every request sends.
func NewService(orders repository.OrderRepository, shops repository.ShopRepository, sender Sender, dedup DedupStore, from string) *Service {
	return &Service{orders: orders, shops: shops, sender: sender, dedup: dedup, from: from}
}

// SendOrderCompleted emails the order's customer and returns the recipient.
func (s *Service) SendOrderCompleted(ctx context.Context, orderID string) (string, error) {
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", entity.ErrValidation)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	shop, err := s.shops.FindByID(ctx, order.ShopID)
	if err != nil {
		return "", err
	}
	if order.CustomerEmail == "" {
		return "", fmt.Errorf("customer email for order %s: %w", orderID, entity.ErrNotFound)
	}

	if !s.claim(ctx, orderID) {
		slog.Info("Completion email already sent", "order_id", orderID)
		return order.CustomerEmail, nil
	}

	html, err := renderCompleted(order, shop)
	if err == nil {
		err = s.sender.Send(ctx, Message{
			From:     s.from,
			To:       order.CustomerEmail,
			Subject:  completedSubject,
			HTMLBody: html,
		})
	}
	if err != nil {
		s.release(ctx, orderID)
		return "", err
	}

	slog.Info("Completion email sent", "order_id", orderID, "recipient", order.CustomerEmail)
	return order.CustomerEmail, nil
}

// claim reports whether this request should send. A failing store lets it through.
func (s *Service) claim(ctx context.Context, orderID string) bool {
	if s.dedup == nil {
		return true
	}
	ok, err := s.dedup.Claim(ctx, orderID)
	if err != nil {
		slog.Warn("Dedup store unavailable, sending anyway", "order_id", orderID, "err", err)
		return true
	}
	return ok
}

func (s *Service) release(ctx context.Context, orderID string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Release(ctx, orderID); err != nil {
		slog.Warn("Failed to release dedup key", "order_id", orderID, "err", err)
	}
}
