package app

import (
	"context"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	repomemory "github.com/egannguyen/instaprint/internal/repository/memory"
	"github.com/shopspring/decimal"
)

// Demo identities seeded into the in-memory store.
const (
	DemoOwnerID    = "demo-owner"
	DemoShopID     = "demo-shop"
	DemoCustomerID = "demo-customer"
)

func seedDemo(ctx context.Context, store *repomemory.Store) {
	store.PutShop(entity.Shop{
		ID:      DemoShopID,
		Name:    "Campus Print Corner",
		Address: "Library Building, Ground Floor",
		OwnerID: DemoOwnerID,
		UPIID:   "campusprints@upi",
	})
	store.PutProfile(DemoCustomerID, "Demo Customer", "customer@example.com")

	prices := []entity.PricingEntry{
		{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeBW, PricePerPage: decimal.RequireFromString("2.00")},
		{PaperSize: entity.PaperA4, ColorMode: entity.ColorModeColor, PricePerPage: decimal.RequireFromString("10.00")},
		{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeBW, PricePerPage: decimal.RequireFromString("5.00")},
		{PaperSize: entity.PaperA3, ColorMode: entity.ColorModeColor, PricePerPage: decimal.RequireFromString("20.00")},
	}
	for _, p := range prices {
		p.ShopID = DemoShopID
		if _, err := store.Pricing().Insert(ctx, p); err != nil {
			slog.Error("Failed to seed pricing", "paper_size", p.PaperSize, "color_mode", p.ColorMode, "err", err)
		}
	}
	slog.Info("Seeded demo shop", "shop_id", DemoShopID, "prices", len(prices))
}
