package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/lib/pq"
)

const listenerPingInterval = 90 * time.Second

// ChangeListener receives the print_jobs trigger notifications over LISTEN/NOTIFY.
type ChangeListener struct {
	listener *pq.Listener
}

// NewChangeListener opens a dedicated LISTEN connection on ChangesChannel.
func NewChangeListener(dsn string) (*ChangeListener, error) {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("Change listener connection event", "event", ev, "err", err)
		}
	})
	if err := l.Listen(ChangesChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangesChannel, err)
	}
	return &ChangeListener{listener: l}, nil
}

// Run calls handle for every change notification. It blocks until the
// context is cancelled or the listener is closed.
func (c *ChangeListener) Run(ctx context.Context, handle func(ctx context.Context, change entity.OrderChanged) error) error {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-c.listener.Notify:
			if !ok {
				return nil
			}
			if n == nil {
				// Sent after a reconnect; changes made while disconnected are lost
				// and subscribers recover through their own refreshes.
				slog.Warn("Change listener reconnected")
				continue
			}
			change, err := ParseChange(n.Extra)
			if err != nil {
				slog.Error("Dropping malformed change notification", "payload", n.Extra, "err", err)
				continue
			}
			if err := handle(ctx, change); err != nil {
				slog.Error("Error handling change notification", "order_id", change.OrderID, "err", err)
			}
		case <-ticker.C:
			go func() {
				if err := c.listener.Ping(); err != nil {
					slog.Warn("Change listener ping failed", "err", err)
				}
			}()
		}
	}
}

func (c *ChangeListener) Close() error {
	return c.listener.Close()
}

// ParseChange decodes the JSON payload written by notify_print_job_change().
func ParseChange(payload string) (entity.OrderChanged, error) {
	var change entity.OrderChanged
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return entity.OrderChanged{}, fmt.Errorf("failed to decode change payload: %w", err)
	}
	switch change.Op {
	case entity.ChangeInsert, entity.ChangeUpdate, entity.ChangeDelete:
	default:
		return entity.OrderChanged{}, fmt.Errorf("unknown change op %q", change.Op)
	}
	if change.ShopID == "" {
		return entity.OrderChanged{}, fmt.Errorf("change for order %q has no shop id", change.OrderID)
	}
	return change, nil
}
