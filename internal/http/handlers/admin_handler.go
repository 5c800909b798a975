package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
)

type AdminHandler struct {
	OrderRepo  *repos.OrderRepo
	OutboxRepo *repos.OutboxRepo
	Inv        *services.InventoryService
	Relay      services.Nudger
	Clock      func() time.Time
}

// GET /api/v1/admin/orders
func (h *AdminHandler) Orders(c *fiber.Ctx) error {
	ords, err := h.OrderRepo.ListLatest(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return fail(c, "admin.orders.list.fail", err, nil)
	}
	out := make([]fiber.Map, 0, len(ords))
	for _, o := range ords {
		row := orderSummary(o)
		row["customer"] = o.CustomerName
		row["email"] = o.CustomerEmail
		row["createdAt"] = o.CreatedAt
		out = append(out, row)
	}
	return c.JSON(fiber.Map{"orders": out})
}

type statusRequest struct {
	Status string `json:"status"`
}

// POST /api/v1/admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	var req statusRequest
	if err := c.BodyParser(&req); err != nil || !domain.ValidOrderStatus(req.Status) {
		return fail(c, "admin.orders.update.fail", domain.Invalid("status", "unknown order status"), map[string]any{"order_id": id})
	}
	if err := h.OrderRepo.UpdateStatus(c.UserContext(), id, req.Status); err != nil {
		return fail(c, "admin.orders.update.fail", err, map[string]any{"order_id": id})
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": req.Status})
	return c.JSON(fiber.Map{"id": id, "status": req.Status})
}

type stockRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// POST /api/v1/admin/inventory
func (h *AdminHandler) SetStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "admin.inventory.save.fail", domain.Invalid("", "malformed request body"), nil)
	}
	pid, ok := validate.ID(req.ProductID)
	if !ok {
		return fail(c, "admin.inventory.save.fail", domain.Invalid("productId", "invalid product id"), nil)
	}
	fields := map[string]any{"product": pid, "qty": req.Qty}
	if err := h.Inv.SetStock(c.UserContext(), pid, req.Qty); err != nil {
		return fail(c, "admin.inventory.save.fail", err, fields)
	}
	applog.Audit(c, "admin.inventory.save", fields)
	return c.JSON(fiber.Map{"productId": pid, "stock": req.Qty})
}

// GET /api/v1/admin/outbox?status=failed
func (h *AdminHandler) Outbox(c *fiber.Ctx) error {
	status := c.Query("status", repos.OutboxFailed)
	switch status {
	case repos.OutboxPending, repos.OutboxDone, repos.OutboxFailed:
	default:
		return fail(c, "admin.outbox.list.fail", domain.Invalid("status", "unknown task status"), nil)
	}
	tasks, err := h.OutboxRepo.List(c.UserContext(), status, c.QueryInt("limit", 100))
	if err != nil {
		return fail(c, "admin.outbox.list.fail", err, nil)
	}
	if tasks == nil {
		tasks = []repos.OutboxTask{}
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

// POST /api/v1/admin/outbox/:id/retry
func (h *AdminHandler) RetryTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.OutboxRepo.Retry(c.UserContext(), id, h.Clock()); err != nil {
		return fail(c, "admin.outbox.retry.fail", err, map[string]any{"task_id": id})
	}
	if h.Relay != nil {
		h.Relay.Nudge()
	}
	applog.Audit(c, "admin.outbox.retry", map[string]any{"task_id": id})
	return c.JSON(fiber.Map{"id": id, "status": repos.OutboxPending})
}
