package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/shopspring/decimal"
)

type QuoteRequest struct {
	UserID     string
	Lines      []domain.CartLine
	CouponCode string
}

type Quote struct {
	Tier             domain.Tier
	Lines            []PricedLine
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	FreeShipping     bool
	QualifyingUnits  int
	CouponNotApplied *domain.CouponNotApplicableError
}

// CatalogService prices carts without committing them.
type CatalogService struct {
	store   *repos.Store
	coupons *CouponService
}

func NewCatalogService(store *repos.Store, coupons *CouponService) *CatalogService {
	return &CatalogService{store: store, coupons: coupons}
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return lookupProduct(ctx, s.store.Products, id)
}

// Quote runs the same pricing as checkout. Coupons are previewed, never claimed.
func (s *CatalogService) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return Quote{}, err
	}
	tier := domain.TierRetail
	if req.UserID != "" {
		u, err := s.store.Users.ByID(ctx, req.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, domain.ErrUnauthorized
		}
		if err != nil {
			return Quote{}, persistence(err)
		}
		tier = u.Tier
	}

	cart, err := priceCart(ctx, s.store.Products, tier, lines)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{
		Tier:            tier,
		Lines:           cart.Lines,
		Subtotal:        cart.Subtotal,
		Discount:        decimal.Zero,
		QualifyingUnits: cart.QualifyingUnits,
	}
	if req.CouponCode != "" {
		red, err := s.coupons.Preview(ctx, req.CouponCode, cart.Subtotal)
		var nae *domain.CouponNotApplicableError
		switch {
		case errors.As(err, &nae):
			q.CouponNotApplied = nae
		case err != nil:
			return Quote{}, err
		default:
			q.Discount = red.Amount
			q.FreeShipping = red.FreeShipping
		}
	}
	q.Total = q.Subtotal.Sub(q.Discount)
	if q.Total.IsNegative() {
		q.Total = decimal.Zero
	}
	return q, nil
}
