package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
)

type OrderHandler struct {
	Orders  *services.OrderService
	Catalog *services.CatalogService
	Repo    *repos.OrderRepo
}

type itemRequest struct {
	ProductID         string                    `json:"productId"`
	Quantity          int                       `json:"quantity"`
	VariantDescriptor string                    `json:"variantDescriptor"`
	Options           []domain.VariantSelection `json:"options"`
}

type customerRequest struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	TaxID      string `json:"taxId"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

type orderRequest struct {
	Items          []itemRequest   `json:"items"`
	Customer       customerRequest `json:"customer"`
	PaymentMethod  string          `json:"paymentMethod"`
	ShippingMethod string          `json:"shippingMethod"`
	CouponCode     string          `json:"couponCode"`
}

func (r orderRequest) lines() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, domain.CartLine{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Descriptor: it.VariantDescriptor,
			Options:    it.Options,
		})
	}
	return out
}

func parseOrder(c *fiber.Ctx) (orderRequest, error) {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil {
		return req, domain.Invalid("", "malformed request body")
	}
	return req, nil
}

// POST /api/v1/orders
func (h *OrderHandler) Commit(c *fiber.Ctx) error {
	req, err := parseOrder(c)
	if err != nil {
		return fail(c, "order.commit.fail", err, nil)
	}
	cu := req.Customer
	res, err := h.Orders.Commit(c.UserContext(), services.CommitOrderCommand{
		UserID: userID(c),
		Contact: domain.Contact{
			Name: cu.Name, Surname: cu.Surname, Email: cu.Email, Phone: cu.Phone, TaxID: cu.TaxID,
			Address: cu.Address, City: cu.City, Province: cu.Province, PostalCode: cu.PostalCode,
		},
		Lines:          req.lines(),
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		ShippingMethod: domain.ShippingMethod(req.ShippingMethod),
		CouponCode:     req.CouponCode,
	})
	if err != nil {
		return fail(c, "order.commit.fail", err, map[string]any{"items": len(req.Items)})
	}

	o := res.Order
	applog.Audit(c, "order.commit", map[string]any{
		"order_id": o.ID,
		"number":   o.Number,
		"subtotal": o.Subtotal.StringFixed(2),
		"discount": o.Discount.StringFixed(2),
		"total":    o.Total.StringFixed(2),
		"coupon":   o.CouponID,
	})
	body := fiber.Map{"order": orderSummary(o)}
	if res.RedirectURL != "" {
		body["paymentRedirectUrl"] = res.RedirectURL
	}
	if nae := res.CouponNotApplied; nae != nil {
		body["couponNotApplied"] = fiber.Map{"code": nae.Code, "reason": nae.Reason}
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// POST /api/v1/orders/quote
func (h *OrderHandler) Quote(c *fiber.Ctx) error {
	req, err := parseOrder(c)
	if err != nil {
		return fail(c, "order.quote.fail", err, nil)
	}
	q, err := h.Catalog.Quote(c.UserContext(), services.QuoteRequest{
		UserID:     userID(c),
		Lines:      req.lines(),
		CouponCode: req.CouponCode,
	})
	if err != nil {
		return fail(c, "order.quote.fail", err, nil)
	}

	items := make([]fiber.Map, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, fiber.Map{
			"productId": l.Product.ID,
			"name":      l.Product.Name,
			"quantity":  l.Quantity,
			"unitPrice": l.UnitPrice.StringFixed(2),
			"subtotal":  l.Subtotal.StringFixed(2),
			"variant":   l.Descriptor,
		})
	}
	body := fiber.Map{
		"tier":            q.Tier,
		"items":           items,
		"subtotal":        q.Subtotal.StringFixed(2),
		"discount":        q.Discount.StringFixed(2),
		"total":           q.Total.StringFixed(2),
		"freeShipping":    q.FreeShipping,
		"qualifyingUnits": q.QualifyingUnits,
	}
	if nae := q.CouponNotApplied; nae != nil {
		body["couponNotApplied"] = fiber.Map{"code": nae.Code, "reason": nae.Reason}
	}
	return c.JSON(body)
}

// GET /api/v1/orders/:id, visible to its owner and to admins. Anyone else
// gets the same 404 as a missing order.
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id := c.Params("id")
	o, err := h.Repo.Get(c.UserContext(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(c, "order.view.fail", domain.ErrNotFound, map[string]any{"order_id": id})
	}
	if err != nil {
		return fail(c, "order.view.fail", err, map[string]any{"order_id": id})
	}
	uid := userID(c)
	if !isAdmin(c) && (uid == "" || o.UserID != uid) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	return c.JSON(orderDetail(o))
}

// GET /api/v1/me/orders
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Repo.ListByUser(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, "orders.history.fail", err, nil)
	}
	out := make([]fiber.Map, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderSummary(o))
	}
	return c.JSON(fiber.Map{"orders": out})
}

func orderSummary(o domain.Order) fiber.Map {
	return fiber.Map{
		"id":     o.ID,
		"number": o.Number,
		"total":  o.Total.StringFixed(2),
		"status": o.Status,
	}
}

func orderDetail(o domain.Order) fiber.Map {
	lines := make([]fiber.Map, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, fiber.Map{
			"productId": l.ProductID,
			"name":      l.ProductName,
			"quantity":  l.Quantity,
			"unitPrice": l.UnitPrice.StringFixed(2),
			"subtotal":  l.Subtotal.StringFixed(2),
			"variant":   l.Variant,
		})
	}
	return fiber.Map{
		"id":     o.ID,
		"number": o.Number,
		"customer": fiber.Map{
			"name":  o.CustomerName,
			"email": o.CustomerEmail,
			"phone": o.CustomerPhone,
		},
		"lines":          lines,
		"subtotal":       o.Subtotal.StringFixed(2),
		"discount":       o.Discount.StringFixed(2),
		"total":          o.Total.StringFixed(2),
		"freeShipping":   o.FreeShipping,
		"status":         o.Status,
		"paymentMethod":  o.PaymentMethod,
		"shippingMethod": o.ShippingMethod,
		"createdAt":      o.CreatedAt,
	}
}
