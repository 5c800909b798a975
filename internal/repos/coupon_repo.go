package repos

import (
	"context"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

type CouponRepo struct{ db DBTX }

func NewCouponRepo(db DBTX) *CouponRepo { return &CouponRepo{db: db} }

// ByCode expects an already normalised (trimmed, upper-case) code.
func (r *CouponRepo) ByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT id, code, kind, value, min_purchase, max_discount, usage_limit, used_count,
		       starts_at, ends_at, active, version
		FROM coupons WHERE code = ?`), code)
	return c, err
}

func (r *CouponRepo) Insert(ctx context.Context, c domain.Coupon) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO coupons(id, code, kind, value, min_purchase, max_discount, usage_limit, used_count, starts_at, ends_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING
	`), c.ID, c.Code, c.Kind, c.Value, c.MinPurchase, c.MaxDiscount, c.UsageLimit, c.UsedCount,
		utcPtr(c.StartsAt), utcPtr(c.EndsAt), c.Active)
	return err
}

// Claim records one redemption. It returns false when the cap was reached
// between the read and this write.
func (r *CouponRepo) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE coupons SET used_count = used_count + 1, version = version + 1
		WHERE id = ? AND active = ? AND (usage_limit IS NULL OR used_count < usage_limit)
	`), id, true)
	if err != nil {
		return false, err
	}
	return rowsAffected(res) == 1, nil
}

func (r *CouponRepo) InsertUsage(ctx context.Context, u domain.CouponUsage) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO coupon_usages(coupon_id, email, order_id, discount, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), u.CouponID, u.Email, u.OrderID, u.Discount, u.CreatedAt.UTC())
	return err
}

func (r *CouponRepo) Usages(ctx context.Context, couponID string) ([]domain.CouponUsage, error) {
	var out []domain.CouponUsage
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT coupon_id, email, order_id, discount, created_at
		FROM coupon_usages WHERE coupon_id = ? ORDER BY created_at`), couponID)
	return out, err
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
