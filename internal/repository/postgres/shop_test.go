package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopRowColumns = []string{"id", "name", "address", "owner_id", "upi_id", "latitude", "longitude", "created_at", "updated_at"}

func TestShopRepository_FindByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM shops WHERE owner_id = $1 ORDER BY created_at")).
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows(shopRowColumns).
			AddRow("shop-1", "Campus Prints", "Library", "owner-1", "campus@upi", 12.97, 77.59, now, now).
			AddRow("shop-2", "Annex", "Block B", "owner-1", "", nil, nil, now, now))

	shops, err := NewShopRepository(db).FindByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, shops, 2)
	require.NotNil(t, shops[0].Location)
	assert.Equal(t, entity.Location{Lat: 12.97, Lng: 77.59}, *shops[0].Location)
	assert.Equal(t, "campus@upi", shops[0].UPIID)
	assert.Nil(t, shops[1].Location, "a shop without coordinates has no location")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopRepository_FindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM shops WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(shopRowColumns))

	_, err = NewShopRepository(db).FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestShopRepository_UpdateLocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewShopRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE shops SET latitude = $1")).
		WithArgs(12.5, 77.25, "MG Road", "shop-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLocation(context.Background(), "shop-1", entity.Location{Lat: 12.5, Lng: 77.25}, "MG Road"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE shops SET latitude = $1")).
		WithArgs(1.0, 2.0, "", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateLocation(context.Background(), "gone", entity.Location{Lat: 1, Lng: 2}, "")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
