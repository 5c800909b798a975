package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/shopspring/decimal"
)

type LinePrice struct {
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	Descriptor string
}

// BasePrice picks the price list for a buyer tier. A lower promotional price
// beats retail; a wholesale price beats both for wholesale buyers.
func BasePrice(tier domain.Tier, p domain.Product) decimal.Decimal {
	if tier == domain.TierWholesale && p.WholesalePrice.Valid {
		return p.WholesalePrice.Decimal
	}
	if p.PromoPrice.Valid && p.PromoPrice.Decimal.IsPositive() && p.PromoPrice.Decimal.LessThan(p.Price) {
		return p.PromoPrice.Decimal
	}
	return p.Price
}

// PriceLine computes the authoritative unit price and subtotal of one cart
// line. Structured options win over the free-text descriptor when present.
func PriceLine(tier domain.Tier, p domain.Product, qty int, descriptor string, sel []domain.VariantSelection) (LinePrice, error) {
	if qty <= 0 {
		return LinePrice{}, domain.Invalid("quantity", "must be positive")
	}
	if qty > p.Stock {
		return LinePrice{}, &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}

	base := BasePrice(tier, p)
	var delta decimal.Decimal
	if len(sel) > 0 {
		d, rendered, err := ResolveVariantSelection(p.Variants, sel, tier, base)
		if err != nil {
			return LinePrice{}, err
		}
		delta = d
		if descriptor == "" {
			descriptor = rendered
		}
	} else {
		delta = ResolveVariantDelta(p.Variants, descriptor, tier, base)
	}

	unit := base.Add(delta)
	if unit.IsNegative() {
		unit = decimal.Zero
	}
	return LinePrice{
		UnitPrice:  unit,
		Subtotal:   unit.Mul(decimal.NewFromInt(int64(qty))),
		Descriptor: descriptor,
	}, nil
}

// PricedLine is a cart line after pricing, ready to become an order line.
type PricedLine struct {
	Product  domain.Product
	Quantity int
	LinePrice
}

type PricedCart struct {
	Lines           []PricedLine
	Subtotal        decimal.Decimal
	QualifyingUnits int
}

func lookupProduct(ctx context.Context, products *repos.ProductRepo, id string) (domain.Product, error) {
	p, err := products.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, persistence(err)
	}
	if !p.Active {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

// priceCart prices every line; the first failing line aborts the whole cart.
// Quantities of repeated products are checked against stock together.
func priceCart(ctx context.Context, products *repos.ProductRepo, tier domain.Tier, lines []domain.CartLine) (PricedCart, error) {
	out := PricedCart{Subtotal: decimal.Zero}
	cache := map[string]domain.Product{}
	wanted := map[string]int{}
	for _, l := range lines {
		p, ok := cache[l.ProductID]
		if !ok {
			var err error
			if p, err = lookupProduct(ctx, products, l.ProductID); err != nil {
				return PricedCart{}, err
			}
			cache[l.ProductID] = p
		}
		lp, err := PriceLine(tier, p, l.Quantity, l.Descriptor, l.Options)
		if err != nil {
			return PricedCart{}, err
		}
		wanted[p.ID] += l.Quantity
		if wanted[p.ID] > p.Stock {
			return PricedCart{}, &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: wanted[p.ID], Available: p.Stock}
		}
		out.Lines = append(out.Lines, PricedLine{Product: p, Quantity: l.Quantity, LinePrice: lp})
		out.Subtotal = out.Subtotal.Add(lp.Subtotal)
		if p.CountsTowardWholesale {
			out.QualifyingUnits += l.Quantity
		}
	}
	return out, nil
}
