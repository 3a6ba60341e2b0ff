package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EffectivePages is the number of sheets that are billed for a job.
// Double-sided jobs bill half the printed pages, rounded up.
func EffectivePages(spec PrintSpec) int64 {
	total := int64(spec.PageCount) * int64(spec.Copies)
	if spec.DoubleSided {
		return (total + 1) / 2
	}
	return total
}

// TotalPrice computes the price of a job. It fails when the price per page
// has not been resolved from the shop's pricing.
func TotalPrice(spec PrintSpec, pricePerPage decimal.NullDecimal) (decimal.Decimal, error) {
	if !pricePerPage.Valid {
		return decimal.Zero, ErrPriceUnavailable
	}
	return decimal.NewFromInt(EffectivePages(spec)).Mul(pricePerPage.Decimal), nil
}

// ValidatePricing checks a shop's price list before it is saved: every price
// must be positive and each (paper size, color mode) pair may appear once.
func ValidatePricing(entries []PricingEntry) error {
	seen := make(map[PricingKey]struct{}, len(entries))
	for _, e := range entries {
		if !e.PaperSize.Valid() || !e.ColorMode.Valid() {
			return fmt.Errorf("%w: unsupported configuration %s/%s", ErrValidation, e.PaperSize, e.ColorMode)
		}
		if !e.PricePerPage.IsPositive() {
			return fmt.Errorf("%w: all prices must be greater than 0", ErrValidation)
		}
	}
	for _, e := range entries {
		if _, dup := seen[e.Key()]; dup {
			return &DuplicateConfigError{Key: e.Key()}
		}
		seen[e.Key()] = struct{}{}
	}
	return nil
}
