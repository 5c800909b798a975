package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/shopspring/decimal"
)

// Redemption is a coupon that applied to an order total.
type Redemption struct {
	Coupon       domain.Coupon
	Amount       decimal.Decimal
	FreeShipping bool
}

type CouponService struct {
	store *repos.Store
	clock func() time.Time
}

func NewCouponService(store *repos.Store, clock func() time.Time) *CouponService {
	if clock == nil {
		clock = time.Now
	}
	return &CouponService{store: store, clock: clock}
}

func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Evaluate checks eligibility and computes the discount. It does not touch
// the store. A nil coupon is reported as not_found.
func (s *CouponService) Evaluate(c *domain.Coupon, total decimal.Decimal, now time.Time) (Redemption, *domain.CouponNotApplicableError) {
	if c == nil {
		return Redemption{}, &domain.CouponNotApplicableError{Reason: domain.CouponReasonNotFound}
	}
	reject := func(reason string) (Redemption, *domain.CouponNotApplicableError) {
		return Redemption{}, &domain.CouponNotApplicableError{Code: c.Code, Reason: reason}
	}
	switch {
	case !c.Active:
		return reject(domain.CouponReasonInactive)
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return reject(domain.CouponReasonExhausted)
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return reject(domain.CouponReasonNotStarted)
	case c.EndsAt != nil && now.After(*c.EndsAt):
		return reject(domain.CouponReasonExpired)
	case c.MinPurchase.Valid && total.LessThan(c.MinPurchase.Decimal):
		return reject(domain.CouponReasonBelowMinimum)
	}

	r := Redemption{Coupon: *c, Amount: decimal.Zero}
	switch c.Kind {
	case domain.CouponPercentage:
		r.Amount = total.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaxDiscount.Valid && r.Amount.GreaterThan(c.MaxDiscount.Decimal) {
			r.Amount = c.MaxDiscount.Decimal
		}
	case domain.CouponFixedAmount:
		// granted amount is what the order could absorb
		r.Amount = decimal.Min(c.Value, total)
	case domain.CouponFreeShipping:
		r.FreeShipping = true
	}
	if r.Amount.IsNegative() {
		r.Amount = decimal.Zero
	}
	return r, nil
}

// Apply loads, evaluates and claims a coupon inside the caller's transaction.
// Business rejections come back as *domain.CouponNotApplicableError.
func (s *CouponService) Apply(ctx context.Context, r repos.Repos, code string, total decimal.Decimal) (Redemption, error) {
	code = NormalizeCode(code)
	c, err := r.Coupons.ByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Redemption{}, &domain.CouponNotApplicableError{Code: code, Reason: domain.CouponReasonNotFound}
	}
	if err != nil {
		return Redemption{}, persistence(err)
	}
	red, nae := s.Evaluate(&c, total, s.clock())
	if nae != nil {
		return Redemption{}, nae
	}
	ok, err := r.Coupons.Claim(ctx, c.ID)
	if err != nil {
		return Redemption{}, persistence(err)
	}
	if !ok {
		return Redemption{}, &domain.CouponNotApplicableError{Code: code, Reason: domain.CouponReasonExhausted}
	}
	return red, nil
}

// RecordUsage appends the audit row for a redemption.
func (s *CouponService) RecordUsage(ctx context.Context, r repos.Repos, red Redemption, orderID, email string) error {
	err := r.Coupons.InsertUsage(ctx, domain.CouponUsage{
		CouponID:  red.Coupon.ID,
		Email:     email,
		OrderID:   orderID,
		Discount:  red.Amount,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return persistence(err)
	}
	return nil
}

// Preview evaluates a code against a total without claiming anything.
func (s *CouponService) Preview(ctx context.Context, code string, total decimal.Decimal) (Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Redemption{}, &domain.CouponNotApplicableError{Reason: domain.CouponReasonNotFound}
	}
	c, err := s.store.Coupons.ByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Redemption{}, &domain.CouponNotApplicableError{Code: code, Reason: domain.CouponReasonNotFound}
	}
	if err != nil {
		return Redemption{}, persistence(err)
	}
	red, nae := s.Evaluate(&c, total, s.clock())
	if nae != nil {
		return Redemption{}, nae
	}
	return red, nil
}
