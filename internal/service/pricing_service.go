package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
)

// PricingService manages a shop's price list.
type PricingService struct {
	pricing repository.PricingRepository
}

func NewPricingService(pricing repository.PricingRepository) *PricingService {
	return &PricingService{pricing: pricing}
}

func (s *PricingService) List(ctx context.Context, shopID string) ([]entity.PricingEntry, error) {
	return s.pricing.FindByShop(ctx, shopID)
}

// Save validates the whole batch, then inserts entries without an id and
// updates the rest. It returns the shop's price list after the save.
func (s *PricingService) Save(ctx context.Context, shopID string, entries []entity.PricingEntry) ([]entity.PricingEntry, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: shop id is required", entity.ErrValidation)
	}
	for i := range entries {
		entries[i].ShopID = shopID
	}
	if err := entity.ValidatePricing(entries); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.ID == "" {
			if _, err := s.pricing.Insert(ctx, e); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.pricing.Update(ctx, e); err != nil {
			return nil, err
		}
	}

	slog.Info("Pricing saved", "shop_id", shopID, "entries", len(entries))
	return s.pricing.FindByShop(ctx, shopID)
}

func (s *PricingService) Remove(ctx context.Context, shopID, entryID string) error {
	if err := s.pricing.Delete(ctx, shopID, entryID); err != nil {
		return err
	}
	slog.Info("Pricing entry removed", "shop_id", shopID, "entry_id", entryID)
	return nil
}
