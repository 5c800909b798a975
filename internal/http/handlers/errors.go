package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/idempotency"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
)

const friendlyError = "Something went wrong. Please try again."

// classify maps service errors onto a status and a body that is safe to show.
func classify(err error) (int, fiber.Map) {
	var (
		fe  *fiber.Error
		ve  *domain.ValidationError
		pnf *domain.ProductNotFoundError
		ise *domain.InsufficientStockError
		nae *domain.CouponNotApplicableError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, fiber.Map{"error": ve.Error(), "field": ve.Field}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, fiber.Map{"error": "invalid or expired credentials"}
	case errors.As(err, &pnf):
		return fiber.StatusNotFound, fiber.Map{"error": pnf.Error(), "productId": pnf.ProductID}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, fiber.Map{"error": "not found"}
	case errors.As(err, &ise):
		return fiber.StatusConflict, fiber.Map{
			"error":     ise.Error(),
			"productId": ise.ProductID,
			"product":   ise.Name,
			"available": ise.Available,
		}
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, fiber.Map{"error": "the record changed, please retry"}
	case errors.As(err, &nae):
		return fiber.StatusUnprocessableEntity, fiber.Map{"error": nae.Error(), "code": nae.Code, "reason": nae.Reason}
	case errors.Is(err, idempotency.ErrFingerprintMismatch):
		return fiber.StatusUnprocessableEntity, fiber.Map{"error": "idempotency key was used for a different request"}
	case errors.As(err, &fe):
		if fe.Code >= fiber.StatusInternalServerError {
			return fe.Code, fiber.Map{"error": friendlyError}
		}
		return fe.Code, fiber.Map{"error": fe.Message}
	default:
		return fiber.StatusInternalServerError, fiber.Map{"error": friendlyError}
	}
}

// fail logs the error under action and writes the mapped response.
// Client mistakes go to the security log; everything else is an error.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	status, body := classify(err)
	c.Status(status)
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, action, err, fields)
	} else {
		f := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			f[k] = v
		}
		f["error"] = err.Error()
		applog.Security(c, action, f)
	}
	return c.JSON(body)
}

// ErrorHandler is the fiber fallback for errors a handler returned unhandled.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return fail(c, "server.error", err, nil)
}
