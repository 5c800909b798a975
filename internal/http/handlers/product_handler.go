package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/products/:id, retail prices and the variant schema.
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, "validation.fail", &domain.ProductNotFoundError{ProductID: c.Params("id")}, map[string]any{"field": "product"})
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return fail(c, "product.detail.fail", err, map[string]any{"product": id})
	}

	groups := make([]fiber.Map, 0, len(p.Variants))
	for _, g := range p.Variants {
		opts := make([]fiber.Map, 0, len(g.Options))
		for _, o := range g.Options {
			opts = append(opts, fiber.Map{"id": o.ID, "name": o.Name, "priceDelta": o.PriceDelta.StringFixed(2)})
		}
		groups = append(groups, fiber.Map{"id": g.ID, "name": g.Name, "options": opts})
	}
	body := fiber.Map{
		"id":        p.ID,
		"name":      p.Name,
		"price":     services.BasePrice(domain.TierRetail, p).StringFixed(2),
		"listPrice": p.Price.StringFixed(2),
		"inStock":   p.Stock > 0,
		"variants":  groups,
	}
	return c.JSON(body)
}
