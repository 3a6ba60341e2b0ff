package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
	"github.com/google/uuid"
)

type eventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore backed by Postgres.
func NewEventStore(db *sql.DB) repository.EventStore {
	return &eventStore{db: db}
}

func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM checkout_events WHERE stream_id = $1", streamID).Scan(&currentVersion)
	if err != nil {
		return storeErr("get current stream version", err)
	}
	if currentVersion != expectedVersion {
		return fmt.Errorf("%w: stream %s expected version %d, got %d", entity.ErrVersionConflict, streamID, expectedVersion, currentVersion)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO checkout_events (id, stream_id, stream_type, version, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)")
	if err != nil {
		return storeErr("prepare event insert", err)
	}
	defer stmt.Close()

	version := expectedVersion
	now := time.Now().UTC()
	for _, event := range events {
		version++
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), streamID, streamType, version, event.EventType(), payload, now); err != nil {
			// A concurrent writer took this version between the check and the insert.
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: stream %s version %d already written", entity.ErrVersionConflict, streamID, version)
			}
			return storeErr("insert event "+event.EventType(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit events", err)
	}
	return nil
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, stream_id, stream_type, version, event_type, payload, created_at FROM checkout_events WHERE stream_id = $1 ORDER BY version ASC",
		streamID,
	)
	if err != nil {
		return nil, storeErr("load events for stream "+streamID, err)
	}
	defer rows.Close()

	var events []entity.EventStoreRecord
	for rows.Next() {
		var record entity.EventStoreRecord
		if err := rows.Scan(&record.ID, &record.StreamID, &record.StreamType, &record.Version, &record.EventType, &record.Payload, &record.CreatedAt); err != nil {
			return nil, storeErr("scan event record", err)
		}
		events = append(events, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate event rows", err)
	}
	return events, nil
}
