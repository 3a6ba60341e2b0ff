package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingRepository_InsertDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO shop_pricing")).
		WithArgs("shop-1", entity.PaperA4, entity.ColorModeColor, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err = NewPricingRepository(db).Insert(context.Background(), entity.PricingEntry{
		ShopID: "shop-1", PaperSize: entity.PaperA4, ColorMode: entity.ColorModeColor, PricePerPage: decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, entity.ErrDuplicateConfig)
	assert.Equal(t, "Pricing for A4, Color already exists", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricingRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO shop_pricing")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))

	e, err := NewPricingRepository(db).Insert(context.Background(), entity.PricingEntry{
		ShopID: "shop-1", PaperSize: entity.PaperA3, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "p-1", e.ID)
}

func TestPricingRepository_FindPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPricingRepository(db)
	key := entity.PricingKey{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_per_page FROM shop_pricing")).
		WithArgs("shop-1", entity.PaperA4, entity.ColorModeBW).
		WillReturnRows(sqlmock.NewRows([]string{"price_per_page"}).AddRow("1.25"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_per_page FROM shop_pricing")).
		WithArgs("shop-2", entity.PaperA4, entity.ColorModeBW).
		WillReturnRows(sqlmock.NewRows([]string{"price_per_page"}))

	p, err := repo.FindPrice(context.Background(), "shop-1", key)
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.True(t, p.Decimal.Equal(decimal.RequireFromString("1.25")))

	p, err = repo.FindPrice(context.Background(), "shop-2", key)
	require.NoError(t, err)
	assert.False(t, p.Valid, "missing pricing is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricingRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM shop_pricing WHERE id = $1 AND shop_id = $2")).
		WithArgs("p-9", "shop-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPricingRepository(db).Delete(context.Background(), "shop-1", "p-9")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
