package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// GET /api/v1/availability?productId=
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID := strings.TrimSpace(c.Query("productId"))
	if productID == "" {
		return fail(c, "validation.fail", domain.Invalid("productId", "missing productId"), nil)
	}
	id, ok := validate.ID(productID)
	if !ok {
		return fail(c, "validation.fail", domain.Invalid("productId", "invalid product id"), map[string]any{"product": productID})
	}

	avail, err := h.Inv.CheckAvailability(c.UserContext(), id)
	if err != nil {
		return fail(c, "availability.fail", err, map[string]any{"product": id})
	}
	return c.JSON(avail)
}
