package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
)

const roleAdmin = "ADMIN"

// Bearer resolves an optional Authorization header. A missing header is a
// guest; a malformed or invalid token is rejected with 401.
func Bearer(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if h == "" {
			return c.Next()
		}
		scheme, raw, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			return fail(c, "auth.token.fail", domain.ErrUnauthorized, map[string]any{"reason": "bad_scheme"})
		}
		claims, err := auth.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			return fail(c, "auth.token.fail", err, nil)
		}
		c.Locals("user_id", claims.Subject)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func isAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == roleAdmin
}

// RequireUser needs Bearer in front of it.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID(c) == "" {
			return fail(c, "access.denied.user", domain.ErrUnauthorized, nil)
		}
		return c.Next()
	}
}

func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID(c) == "" {
			return fail(c, "access.denied.admin", domain.ErrUnauthorized, nil)
		}
		if !isAdmin(c) {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Access denied"})
		}
		return c.Next()
	}
}
