package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/lib/pq"
)

// ChangesChannel is the LISTEN/NOTIFY channel the print_jobs trigger writes to.
const ChangesChannel = "print_jobs_changes"

const uniqueViolation = "23505"

func InitDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS shops (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			upi_id TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS shops_owner_idx ON shops (owner_id);

		CREATE TABLE IF NOT EXISTS shop_pricing (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			shop_id TEXT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			paper_size TEXT NOT NULL CHECK (paper_size IN ('A4', 'A3', 'Letter', 'Legal')),
			color_mode TEXT NOT NULL CHECK (color_mode IN ('bw', 'color')),
			price_per_page NUMERIC(10, 2) NOT NULL CHECK (price_per_page > 0),
			UNIQUE (shop_id, paper_size, color_mode)
		);

		CREATE TABLE IF NOT EXISTS print_jobs (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			customer_id TEXT NOT NULL,
			shop_id TEXT NOT NULL REFERENCES shops(id),
			file_path TEXT NOT NULL,
			paper_size TEXT NOT NULL CHECK (paper_size IN ('A4', 'A3', 'Letter', 'Legal')),
			color_mode TEXT NOT NULL CHECK (color_mode IN ('bw', 'color')),
			page_count INT DEFAULT 1 CHECK (page_count > 0),
			copies INT NOT NULL DEFAULT 1 CHECK (copies > 0),
			double_sided BOOLEAN NOT NULL DEFAULT FALSE,
			stapling BOOLEAN NOT NULL DEFAULT FALSE,
			price_per_page NUMERIC(10, 2),
			price NUMERIC(12, 2) NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'cancelled')),
			payment_status TEXT NOT NULL DEFAULT 'pending' CHECK (payment_status IN ('pending', 'completed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS print_jobs_shop_created_idx ON print_jobs (shop_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS checkout_events (
			id TEXT PRIMARY KEY,
			stream_id TEXT NOT NULL,
			stream_type TEXT NOT NULL,
			version INT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (stream_id, version)
		);

		CREATE OR REPLACE FUNCTION notify_print_job_change() RETURNS trigger AS $$
		DECLARE
			changed RECORD;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				changed := OLD;
			ELSE
				changed := NEW;
			END IF;
			PERFORM pg_notify('` + ChangesChannel + `', json_build_object(
				'op', TG_OP,
				'shop_id', changed.shop_id,
				'order_id', changed.id
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS print_jobs_notify ON print_jobs;
		CREATE TRIGGER print_jobs_notify
			AFTER INSERT OR UPDATE OR DELETE ON print_jobs
			FOR EACH ROW EXECUTE FUNCTION notify_print_job_change();
	`)
	return err
}

// storeErr tags a database failure as ErrStoreUnavailable and keeps the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", entity.ErrStoreUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}
