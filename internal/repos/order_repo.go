package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

type OrderRepo struct{ db DBTX }

func NewOrderRepo(db DBTX) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, number, COALESCE(user_id, '') AS user_id, customer_name, customer_email, customer_phone,
    tax_id, ship_address, ship_city, ship_province, ship_postal_code, subtotal, discount, total,
    free_shipping, status, payment_method, shipping_method, COALESCE(coupon_id, '') AS coupon_id, created_at`

// Insert writes the order header. Lines are written separately with InsertLines.
func (r *OrderRepo) Insert(ctx context.Context, o domain.Order) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  INSERT INTO orders
	    (id, number, user_id, customer_name, customer_email, customer_phone, tax_id,
	     ship_address, ship_city, ship_province, ship_postal_code,
	     subtotal, discount, total, free_shipping, status, payment_method, shipping_method, coupon_id, created_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), o.ID, o.Number, nullIfEmpty(o.UserID), o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.TaxID,
		o.ShipAddress, o.ShipCity, o.ShipProvince, o.ShipPostalCode,
		o.Subtotal, o.Discount, o.Total, o.FreeShipping, o.Status, o.PaymentMethod, o.ShippingMethod,
		nullIfEmpty(o.CouponID), o.CreatedAt.UTC())
	return err
}

func (r *OrderRepo) InsertLines(ctx context.Context, lines []domain.OrderLine) error {
	for _, l := range lines {
		if _, err := sqlx.NamedExecContext(ctx, r.db, `
		  INSERT INTO order_items(order_id, line_no, product_id, product_name, qty, unit_price, subtotal, variant)
		  VALUES (:order_id, :line_no, :product_id, :product_name, :qty, :unit_price, :subtotal, :variant)
		`, l); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the order with its lines in submission order.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	if err := r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id); err != nil {
		return domain.Order{}, err
	}
	if err := r.db.SelectContext(ctx, &o.Lines, r.db.Rebind(`
		SELECT order_id, line_no, product_id, product_name, qty, unit_price, subtotal, variant
		FROM order_items WHERE order_id = ? ORDER BY line_no`), id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []domain.Order
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT `+orderCols+` FROM orders ORDER BY number DESC LIMIT ?`), limit)
	return out, err
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE user_id = ? ORDER BY number DESC`), userID)
	return out, err
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE orders SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type CounterRepo struct{ db DBTX }

func NewCounterRepo(db DBTX) *CounterRepo { return &CounterRepo{db: db} }

// Next increments the named counter and returns the new value.
func (r *CounterRepo) Next(ctx context.Context, name string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`UPDATE counters SET value = value + 1 WHERE name = ? RETURNING value`), name)
	return n, err
}
