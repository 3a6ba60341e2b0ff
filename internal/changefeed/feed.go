package changefeed

import (
	"context"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
)

// Feed is a Source for the in-memory store: writers Push, Run drains.
type Feed struct {
	ch chan entity.OrderChanged
}

func NewFeed(buffer int) *Feed {
	return &Feed{ch: make(chan entity.OrderChanged, buffer)}
}

// Push never blocks. A change is dropped when the buffer is full; readers
// reload the whole shop on the next change anyway.
func (f *Feed) Push(change entity.OrderChanged) {
	select {
	case f.ch <- change:
	default:
		slog.Warn("Change feed full, dropping notification", "shop_id", change.ShopID, "order_id", change.OrderID)
	}
}

func (f *Feed) Run(ctx context.Context, handle func(ctx context.Context, change entity.OrderChanged) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-f.ch:
			if err := handle(ctx, change); err != nil {
				slog.Error("Failed to relay change", "order_id", change.OrderID, "err", err)
			}
		}
	}
}
