package service

import (
	"context"
	"testing"

	"github.com/egannguyen/instaprint/internal/entity"
	repomemory "github.com/egannguyen/instaprint/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingService_Save(t *testing.T) {
	store := repomemory.NewStore()
	svc := NewPricingService(store.Pricing())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "shop-1", []entity.PricingEntry{
		{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(2)},
		{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeColor, PricePerPage: decimal.NewFromInt(5)},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	saved[0].PricePerPage = decimal.RequireFromString("2.50")
	saved, err = svc.Save(ctx, "shop-1", saved)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "2.50", saved[0].PricePerPage.StringFixed(2))

	// A new row for a pair that is already stored hits the uniqueness constraint.
	_, err = svc.Save(ctx, "shop-1", []entity.PricingEntry{
		{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(3)},
	})
	require.ErrorIs(t, err, entity.ErrDuplicateConfig)
	assert.Equal(t, "Pricing for A4, Black & White already exists", err.Error())
}

func TestPricingService_SaveRejectsBadBatch(t *testing.T) {
	store := repomemory.NewStore()
	svc := NewPricingService(store.Pricing())
	ctx := context.Background()

	_, err := svc.Save(ctx, "shop-1", []entity.PricingEntry{
		{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(2)},
		{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(4)},
	})
	require.ErrorIs(t, err, entity.ErrDuplicateConfig)
	assert.Equal(t, "Duplicate configuration found: A3, Black & White", err.Error())

	_, err = svc.Save(ctx, "shop-1", []entity.PricingEntry{
		{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeBW, PricePerPage: decimal.Zero},
	})
	assert.ErrorIs(t, err, entity.ErrValidation)

	entries, err := svc.List(ctx, "shop-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPricingService_Remove(t *testing.T) {
	store := repomemory.NewStore()
	svc := NewPricingService(store.Pricing())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "shop-1", []entity.PricingEntry{
		{PaperSize: entity.PaperLetter, ColorMode: entity.ColorModeBW, PricePerPage: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, "shop-2", saved[0].ID), entity.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, "shop-1", saved[0].ID))

	entries, err := svc.List(ctx, "shop-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
