// Package changefeed moves print_jobs change notifications from the store
// onto the message bus so any number of operator sessions can follow them.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/messaging"
)

// Source delivers store change notifications until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, handle func(ctx context.Context, change entity.OrderChanged) error) error
}

// Relay republishes every change on messaging.ChangesTopic keyed by shop id,
// which keeps one shop's changes ordered within a partition.
type Relay struct {
	source    Source
	publisher messaging.Publisher
}

func NewRelay(source Source, publisher messaging.Publisher) *Relay {
	return &Relay{source: source, publisher: publisher}
}

// Run blocks until ctx is cancelled or the source stops.
func (r *Relay) Run(ctx context.Context) error {
	slog.Info("Change relay started", "topic", messaging.ChangesTopic)
	err := r.source.Run(ctx, r.forward)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) forward(ctx context.Context, change entity.OrderChanged) error {
	if err := r.publisher.PublishEvent(ctx, messaging.ChangesTopic, change.ShopID, change); err != nil {
		return fmt.Errorf("failed to publish change for order %s: %w", change.OrderID, err)
	}
	slog.Debug("Relayed order change", "op", change.Op, "shop_id", change.ShopID, "order_id", change.OrderID)
	return nil
}

// Decode parses a payload published by Relay.
func Decode(payload []byte) (entity.OrderChanged, error) {
	var change entity.OrderChanged
	if err := json.Unmarshal(payload, &change); err != nil {
		return entity.OrderChanged{}, fmt.Errorf("failed to decode order change: %w", err)
	}
	return change, nil
}
