package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/repository"
)

const (
	unknownCustomerName  = "Unknown Customer"
	unknownCustomerEmail = "Unknown Email"
)

const orderColumns = `j.id, j.customer_id, j.shop_id, j.file_path, j.paper_size, j.color_mode,
	COALESCE(j.page_count, 1), j.copies, j.double_sided, j.stapling, j.price_per_page, j.price,
	j.status, j.payment_status, j.created_at, j.updated_at,
	COALESCE(p.name, ''), COALESCE(p.email, '')`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o entity.Order) (entity.Order, error) {
	o.Status = entity.StatusPending
	o.PaymentStatus = entity.PaymentPending

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO print_jobs (customer_id, shop_id, file_path, paper_size, color_mode, page_count, copies,
			double_sided, stapling, price_per_page, price, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		o.CustomerID, o.ShopID, o.FilePath, o.Spec.PaperSize, o.Spec.ColorMode, o.Spec.PageCount, o.Spec.Copies,
		o.Spec.DoubleSided, o.Spec.Stapling, o.PricePerPage, o.Price, o.Status, o.PaymentStatus,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return entity.Order{}, storeErr("insert print job", err)
	}
	return o, nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (entity.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM print_jobs j LEFT JOIN profiles p ON p.id = j.customer_id WHERE j.id = $1",
		orderID,
	)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Order{}, fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Order{}, storeErr("query print job", err)
	}
	return o, nil
}

func (r *orderRepository) FindByShop(ctx context.Context, shopID string) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM print_jobs j LEFT JOIN profiles p ON p.id = j.customer_id WHERE j.shop_id = $1 ORDER BY j.created_at DESC",
		shopID,
	)
	if err != nil {
		return nil, storeErr("query print jobs", err)
	}
	defer rows.Close()

	orders := []entity.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storeErr("scan print job", err)
		}
		if o.CustomerName == "" {
			o.CustomerName = unknownCustomerName
		}
		if o.CustomerEmail == "" {
			o.CustomerEmail = unknownCustomerEmail
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate print jobs", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE print_jobs SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID,
	)
	if err != nil {
		return storeErr("update order status", err)
	}
	return expectOneRow(res, orderID)
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status entity.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE print_jobs SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID,
	)
	if err != nil {
		return storeErr("update payment status", err)
	}
	return expectOneRow(res, orderID)
}

func scanOrder(row rowScanner) (entity.Order, error) {
	var o entity.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ShopID, &o.FilePath, &o.Spec.PaperSize, &o.Spec.ColorMode,
		&o.Spec.PageCount, &o.Spec.Copies, &o.Spec.DoubleSided, &o.Spec.Stapling, &o.PricePerPage, &o.Price,
		&o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
		&o.CustomerName, &o.CustomerEmail,
	)
	return o, err
}

func expectOneRow(res sql.Result, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("read affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, entity.ErrNotFound)
	}
	return nil
}
