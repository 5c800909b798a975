package repos

import (
	"context"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Seed inserts demo catalog, coupons and accounts. Safe to run on every start.
func Seed(ctx context.Context, s *Store) error {
	return s.WithTx(ctx, func(r Repos) error {
		for _, p := range demoProducts() {
			if _, err := r.Products.Get(ctx, p.ID); err == nil {
				continue
			}
			if err := r.Products.Upsert(ctx, p); err != nil {
				return err
			}
		}
		for _, c := range demoCoupons() {
			if err := r.Coupons.Insert(ctx, c); err != nil {
				return err
			}
		}
		for _, u := range demoUsers() {
			if err := r.Users.Insert(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func demoProducts() []domain.Product {
	d := decimal.RequireFromString
	return []domain.Product{
		{
			ID: "maceta-geo", Name: "Maceta geométrica", Price: d("1000"),
			WholesalePrice: decimal.NewNullDecimal(d("800")),
			Stock:          40, CountsTowardWholesale: true, Active: true,
			Variants: []domain.VariantGroup{
				{ID: "size", Name: "Size", Options: []domain.VariantOption{
					{ID: "m", Name: "M"},
					{ID: "xl", Name: "XL", PriceDelta: d("50")},
				}},
				{ID: "color", Name: "Color", Options: []domain.VariantOption{
					{ID: "blue", Name: "Blue"},
					{ID: "light-blue", Name: "Light Blue", PriceDelta: d("30")},
				}},
			},
		},
		{
			ID: "lampara-luna", Name: "Lámpara luna", Price: d("6000"),
			PromoPrice:     decimal.NewNullDecimal(d("5200")),
			WholesalePrice: decimal.NewNullDecimal(d("4500")),
			Stock:          8, CountsTowardWholesale: true, Active: true,
			Variants: []domain.VariantGroup{
				{ID: "finish", Name: "Finish", Options: []domain.VariantOption{
					{ID: "matte", Name: "Matte"},
					{ID: "silk", Name: "Silk", PriceDelta: d("400"), WholesalePrice: decimal.NewNullDecimal(d("4700"))},
				}},
			},
		},
		{
			ID: "llavero-logo", Name: "Llavero con logo", Price: d("450"),
			Stock: 200, CountsTowardWholesale: false, Active: true,
		},
	}
}

func demoCoupons() []domain.Coupon {
	d := decimal.RequireFromString
	limit := 100
	return []domain.Coupon{
		{ID: "c-save10", Code: "SAVE10", Kind: domain.CouponPercentage, Value: d("10"),
			MaxDiscount: decimal.NewNullDecimal(d("500")), UsageLimit: &limit, Active: true},
		{ID: "c-menos1000", Code: "MENOS1000", Kind: domain.CouponFixedAmount, Value: d("1000"),
			MinPurchase: decimal.NewNullDecimal(d("5000")), Active: true},
		{ID: "c-envio", Code: "ENVIOGRATIS", Kind: domain.CouponFreeShipping, Active: true},
	}
}

func demoUsers() []domain.User {
	mk := func(id, email, name, role string) domain.User {
		h, _ := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
		return domain.User{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}
	wholesale := mk("u-taller", "taller@grana3d.test", "Taller Norte", "USER")
	exp := time.Date(2026, time.January, 10, 3, 0, 0, 0, time.UTC)
	wholesale.Tier = domain.TierWholesale
	wholesale.WholesaleStatus = domain.WholesaleActive
	wholesale.PeriodExpiresAt = &exp
	return []domain.User{
		mk("u-ana", "ana@grana3d.test", "Ana", "USER"),
		wholesale,
		mk("u-admin", "admin@grana3d.test", "Admin", "ADMIN"),
	}
}
