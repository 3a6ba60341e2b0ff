package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
)

// Request is one location change for a shop: either a point or a search query.
type Request struct {
	Location *entity.Location `json:"location,omitempty"`
	Query    string           `json:"query,omitempty"`
	Source   Source           `json:"source,omitempty"`
}

// Service writes picked locations to the shop row.
type Service struct {
	shops    repository.ShopRepository
	geocoder Geocoder
}

// NewService creates the service; geocoder may be nil.
func NewService(shops repository.ShopRepository, geocoder Geocoder) *Service {
	return &Service{shops: shops, geocoder: geocoder}
}

// UpdateShopLocation runs req through a picker for the shop and stores the
// selection. The stored address is only replaced when one was resolved.
func (s *Service) UpdateShopLocation(ctx context.Context, shopID string, req Request) (Selection, error) {
	shop, err := s.shops.FindByID(ctx, shopID)
	if err != nil {
		return Selection{}, err
	}

	var picked *Selection
	picker := NewPicker(shop.Location, s.geocoder, func(sel Selection) { picked = &sel })

	switch {
	case req.Query != "":
		_, err = picker.Search(ctx, req.Query)
	case req.Location != nil:
		source := req.Source
		if source == "" {
			source = SourceClick
		}
		_, err = picker.Select(ctx, *req.Location, source)
	default:
		err = fmt.Errorf("%w: location or query is required", entity.ErrValidation)
	}
	if err != nil {
		return Selection{}, err
	}

	if err := s.shops.UpdateLocation(ctx, shopID, picked.Location, picked.Address); err != nil {
		return Selection{}, fmt.Errorf("failed to save shop location: %w", err)
	}
	slog.Info("Shop location updated", "shop_id", shopID, "source", picked.Source, "address", picked.Address)
	return *picked, nil
}
