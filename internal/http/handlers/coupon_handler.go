package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
)

type CouponHandler struct {
	Coupons *services.CouponService
}

type couponRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// POST /api/v1/coupons/validate. An inapplicable coupon is a normal answer,
// not an error.
func (h *CouponHandler) Validate(c *fiber.Ctx) error {
	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "coupon.validate.fail", domain.Invalid("", "malformed request body"), nil)
	}
	code, ok := validate.CouponCode(req.Code)
	if !ok {
		return fail(c, "coupon.validate.fail", domain.Invalid("code", "invalid coupon code"), nil)
	}
	if req.Subtotal.IsNegative() {
		return fail(c, "coupon.validate.fail", domain.Invalid("subtotal", "must not be negative"), nil)
	}

	red, err := h.Coupons.Preview(c.UserContext(), code, req.Subtotal)
	var nae *domain.CouponNotApplicableError
	if errors.As(err, &nae) {
		return c.JSON(fiber.Map{"valid": false, "code": code, "reason": nae.Reason})
	}
	if err != nil {
		return fail(c, "coupon.validate.fail", err, map[string]any{"code": code})
	}
	total := req.Subtotal.Sub(red.Amount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return c.JSON(fiber.Map{
		"valid":        true,
		"code":         code,
		"kind":         red.Coupon.Kind,
		"discount":     red.Amount.StringFixed(2),
		"freeShipping": red.FreeShipping,
		"total":        total.StringFixed(2),
	})
}
