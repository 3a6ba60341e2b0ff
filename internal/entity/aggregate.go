package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckoutStream is the stream type of checkout event streams. A checkout
// stream id is its order id.
const CheckoutStream = "checkout"

// EventStoreRecord represents an event stored in the database.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Aggregate represents a domain aggregate root.
type Aggregate interface {
	GetAggregateID() string
	GetVersion() int
	SetVersion(version int)
	ApplyEvent(event Event) error
}

// AggregateBase provides a basic implementation for an aggregate.
type AggregateBase struct {
	ID      string
	Version int
}

func (a *AggregateBase) GetAggregateID() string {
	return a.ID
}

func (a *AggregateBase) GetVersion() int {
	return a.Version
}

func (a *AggregateBase) SetVersion(version int) {
	a.Version = version
}

// DecodeEvent turns a stored record back into its event.
func DecodeEvent(record EventStoreRecord) (Event, error) {
	var e Event
	switch record.EventType {
	case OrderPlaced{}.EventType():
		var placed OrderPlaced
		if err := json.Unmarshal(record.Payload, &placed); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", record.EventType, err)
		}
		e = placed
	case PaymentConfirmed{}.EventType():
		var confirmed PaymentConfirmed
		if err := json.Unmarshal(record.Payload, &confirmed); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", record.EventType, err)
		}
		e = confirmed
	default:
		return nil, fmt.Errorf("unknown event type %q in stream %s", record.EventType, record.StreamID)
	}
	return e, nil
}

// Rehydrate replays records onto agg in order and leaves its version at
// the last record's.
func Rehydrate(agg Aggregate, records []EventStoreRecord) error {
	for _, record := range records {
		e, err := DecodeEvent(record)
		if err != nil {
			return err
		}
		if err := agg.ApplyEvent(e); err != nil {
			return fmt.Errorf("failed to replay %s v%d: %w", record.EventType, record.Version, err)
		}
		agg.SetVersion(record.Version)
	}
	return nil
}
