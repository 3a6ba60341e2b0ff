package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
)

const shopColumns = "id, name, address, owner_id, COALESCE(upi_id, ''), latitude, longitude, created_at, updated_at"

type shopRepository struct {
	db *sql.DB
}

// NewShopRepository creates a new ShopRepository backed by Postgres.
func NewShopRepository(db *sql.DB) repository.ShopRepository {
	return &shopRepository{db: db}
}

func (r *shopRepository) FindByID(ctx context.Context, shopID string) (entity.Shop, error) {
	s, err := scanShop(r.db.QueryRowContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE id = $1", shopID))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Shop{}, fmt.Errorf("shop %s: %w", shopID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Shop{}, storeErr("query shop", err)
	}
	return s, nil
}

func (r *shopRepository) FindByOwner(ctx context.Context, ownerID string) ([]entity.Shop, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE owner_id = $1 ORDER BY created_at", ownerID)
	if err != nil {
		return nil, storeErr("query shops", err)
	}
	defer rows.Close()

	var shops []entity.Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, storeErr("scan shop", err)
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate shops", err)
	}
	return shops, nil
}

func (r *shopRepository) UpdateLocation(ctx context.Context, shopID string, loc entity.Location, address string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE shops SET latitude = $1, longitude = $2, address = COALESCE(NULLIF($3, ''), address), updated_at = NOW() WHERE id = $4",
		loc.Lat, loc.Lng, address, shopID,
	)
	if err != nil {
		return storeErr("update shop location", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("read affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("shop %s: %w", shopID, entity.ErrNotFound)
	}
	return nil
}

func scanShop(row rowScanner) (entity.Shop, error) {
	var (
		s        entity.Shop
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Address, &s.OwnerID, &s.UPIID, &lat, &lng, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return entity.Shop{}, err
	}
	if lat.Valid && lng.Valid {
		s.Location = &entity.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	return s, nil
}
