package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

type ProductRepo struct{ db DBTX }

func NewProductRepo(db DBTX) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, name, price, promo_price, wholesale_price, stock, variants_json,
    counts_toward_wholesale, active, version`

// Get returns the product with its variant schema decoded. Unknown ids
// surface as sql.ErrNoRows.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	if err != nil {
		return domain.Product{}, err
	}
	if err := decodeVariants(&p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	if err := r.db.SelectContext(ctx, &out, `SELECT `+productCols+` FROM products ORDER BY name`); err != nil {
		return nil, err
	}
	for i := range out {
		if err := decodeVariants(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeVariants(p *domain.Product) error {
	if strings.TrimSpace(p.VariantsJSON) == "" {
		p.Variants = nil
		return nil
	}
	if err := json.Unmarshal([]byte(p.VariantsJSON), &p.Variants); err != nil {
		return fmt.Errorf("product %s variants: %w", p.ID, err)
	}
	return nil
}

// Upsert writes the catalog fields of a product. Variants take precedence over
// VariantsJSON when both are set.
func (r *ProductRepo) Upsert(ctx context.Context, p domain.Product) error {
	raw := p.VariantsJSON
	if len(p.Variants) > 0 {
		b, err := json.Marshal(p.Variants)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO products(id, name, price, promo_price, wholesale_price, stock, variants_json, counts_toward_wholesale, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  price = excluded.price,
		  promo_price = excluded.promo_price,
		  wholesale_price = excluded.wholesale_price,
		  stock = excluded.stock,
		  variants_json = excluded.variants_json,
		  counts_toward_wholesale = excluded.counts_toward_wholesale,
		  active = excluded.active,
		  version = products.version + 1
	`), p.ID, p.Name, p.Price, p.PromoPrice, p.WholesalePrice, p.Stock, raw, p.CountsTowardWholesale, p.Active)
	return err
}

// DecrementStock subtracts qty only if enough stock remains. When version is
// non-zero the row must also still be at that version.
func (r *ProductRepo) DecrementStock(ctx context.Context, id string, qty int, version int64) error {
	q := `UPDATE products SET stock = stock - ?, version = version + 1 WHERE id = ? AND stock >= ?`
	args := []any{qty, id, qty}
	if version > 0 {
		q += ` AND version = ?`
		args = append(args, version)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 1 {
		return nil
	}

	var cur struct {
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	if err := r.db.GetContext(ctx, &cur, r.db.Rebind(`SELECT name, stock FROM products WHERE id = ?`), id); err != nil {
		return err
	}
	if cur.Stock < qty {
		return &domain.InsufficientStockError{ProductID: id, Name: cur.Name, Requested: qty, Available: cur.Stock}
	}
	return domain.ErrConflict
}

// SetStock overwrites the stock level (admin inventory).
func (r *ProductRepo) SetStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return domain.Invalid("stock", "must not be negative")
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE products SET stock = ?, version = version + 1 WHERE id = ?`), qty, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	return nil
}
