package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
	"github.com/shopspring/decimal"
)

type pricingRepository struct {
	db *sql.DB
}

// NewPricingRepository creates a new PricingRepository backed by Postgres.
func NewPricingRepository(db *sql.DB) repository.PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) FindByShop(ctx context.Context, shopID string) ([]entity.PricingEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, shop_id, paper_size, color_mode, price_per_page FROM shop_pricing WHERE shop_id = $1 ORDER BY paper_size, color_mode",
		shopID,
	)
	if err != nil {
		return nil, storeErr("query pricing", err)
	}
	defer rows.Close()

	entries := []entity.PricingEntry{}
	for rows.Next() {
		var e entity.PricingEntry
		if err := rows.Scan(&e.ID, &e.ShopID, &e.PaperSize, &e.ColorMode, &e.PricePerPage); err != nil {
			return nil, storeErr("scan pricing", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate pricing", err)
	}
	return entries, nil
}

func (r *pricingRepository) FindPrice(ctx context.Context, shopID string, key entity.PricingKey) (decimal.NullDecimal, error) {
	var price decimal.NullDecimal
	err := r.db.QueryRowContext(ctx,
		"SELECT price_per_page FROM shop_pricing WHERE shop_id = $1 AND paper_size = $2 AND color_mode = $3",
		shopID, key.PaperSize, key.ColorMode,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, storeErr("query price", err)
	}
	return price, nil
}

func (r *pricingRepository) Insert(ctx context.Context, e entity.PricingEntry) (entity.PricingEntry, error) {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO shop_pricing (shop_id, paper_size, color_mode, price_per_page) VALUES ($1, $2, $3, $4) RETURNING id",
		e.ShopID, e.PaperSize, e.ColorMode, e.PricePerPage,
	).Scan(&e.ID)
	if isUniqueViolation(err) {
		return entity.PricingEntry{}, &entity.DuplicateConfigError{Key: e.Key(), Stored: true}
	}
	if err != nil {
		return entity.PricingEntry{}, storeErr("insert pricing", err)
	}
	return e, nil
}

func (r *pricingRepository) Update(ctx context.Context, e entity.PricingEntry) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE shop_pricing SET paper_size = $1, color_mode = $2, price_per_page = $3 WHERE id = $4 AND shop_id = $5",
		e.PaperSize, e.ColorMode, e.PricePerPage, e.ID, e.ShopID,
	)
	if isUniqueViolation(err) {
		return &entity.DuplicateConfigError{Key: e.Key(), Stored: true}
	}
	if err != nil {
		return storeErr("update pricing", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("read affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("pricing entry %s: %w", e.ID, entity.ErrNotFound)
	}
	return nil
}

func (r *pricingRepository) Delete(ctx context.Context, shopID, entryID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM shop_pricing WHERE id = $1 AND shop_id = $2", entryID, shopID)
	if err != nil {
		return storeErr("delete pricing", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("read affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("pricing entry %s: %w", entryID, entity.ErrNotFound)
	}
	return nil
}
