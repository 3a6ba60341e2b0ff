package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insertEvent = "INSERT INTO checkout_events (id, stream_id, stream_type, version, event_type, payload, created_at)"

func TestEventStore_SaveEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM checkout_events WHERE stream_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertEvent))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "order-1", entity.CheckoutStream, 1, "OrderPlaced", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "order-1", entity.CheckoutStream, 2, "PaymentConfirmed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewEventStore(db).SaveEvents(context.Background(), "order-1", entity.CheckoutStream, 0, []entity.Event{
		entity.OrderPlaced{OrderID: "order-1", ShopID: "shop-1", Total: decimal.NewFromInt(10)},
		entity.PaymentConfirmed{OrderID: "order-1", Source: entity.PaymentSourceManual},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_SaveEventsVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewEventStore(db)
	confirmed := []entity.Event{entity.PaymentConfirmed{OrderID: "order-1"}}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_events WHERE stream_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectRollback()

	err = store.SaveEvents(context.Background(), "order-1", entity.CheckoutStream, 1, confirmed)
	assert.ErrorIs(t, err, entity.ErrVersionConflict)

	// A writer that slips in between the check and the insert hits the unique key.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_events WHERE stream_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectPrepare(regexp.QuoteMeta(insertEvent)).ExpectExec().
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err = store.SaveEvents(context.Background(), "order-1", entity.CheckoutStream, 1, confirmed)
	assert.ErrorIs(t, err, entity.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_LoadEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_events WHERE stream_id = $1 ORDER BY version ASC")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stream_id", "stream_type", "version", "event_type", "payload", "created_at"}).
			AddRow("e1", "order-1", entity.CheckoutStream, 1, "OrderPlaced", []byte(`{"order_id":"order-1","shop_id":"shop-1","total":"10"}`), at).
			AddRow("e2", "order-1", entity.CheckoutStream, 2, "PaymentConfirmed", []byte(`{"order_id":"order-1","source":"widget"}`), at))

	records, err := NewEventStore(db).LoadEvents(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	c := entity.NewCheckout()
	require.NoError(t, entity.Rehydrate(c, records))
	assert.Equal(t, entity.CheckoutPaymentConfirmed, c.State)
	assert.Equal(t, 2, c.GetVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}
