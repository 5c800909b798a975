package services

import (
	"context"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
)

const lowStockBelow = 5

type InventoryService struct {
	store *repos.Store
}

func NewInventoryService(store *repos.Store) *InventoryService {
	return &InventoryService{store: store}
}

// CheckAvailability converts stock into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID string) (domain.Availability, error) {
	p, err := lookupProduct(ctx, s.store.Products, productID)
	if err != nil {
		return domain.Availability{}, err
	}
	status := "OUT_OF_STOCK"
	switch {
	case p.Stock >= lowStockBelow:
		status = "IN_STOCK"
	case p.Stock > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: p.Stock}, nil
}

func (s *InventoryService) SetStock(ctx context.Context, productID string, qty int) error {
	if qty < 0 {
		return domain.Invalid("qty", "must not be negative")
	}
	return s.store.Products.SetStock(ctx, productID, qty)
}
