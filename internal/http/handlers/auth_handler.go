package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
)

type AuthHandler struct {
	Auth  *services.AuthService
	Users *repos.UserRepo
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "auth.login.fail", domain.Invalid("", "malformed request body"), nil)
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		log.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if !validate.Password(req.Password) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	tok, u, err := h.Auth.Login(c.UserContext(), email, req.Password)
	if errors.Is(err, services.ErrBadCreds) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if err != nil {
		return fail(c, "auth.login.fail", err, map[string]any{"email": email})
	}
	c.Locals("user_id", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.JSON(fiber.Map{"token": tok, "user": userView(u)})
}

// GET /api/v1/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Users.ByID(c.UserContext(), userID(c))
	if errors.Is(err, sql.ErrNoRows) {
		return fail(c, "me.load.fail", domain.ErrUnauthorized, nil)
	}
	if err != nil {
		return fail(c, "me.load.fail", err, nil)
	}
	return c.JSON(userView(u))
}

func userView(u *domain.User) fiber.Map {
	ws := fiber.Map{
		"status":           u.WholesaleStatus,
		"unitsAccumulated": u.UnitsAccumulated,
	}
	if u.PeriodExpiresAt != nil {
		ws["periodExpiresAt"] = u.PeriodExpiresAt.UTC()
	}
	return fiber.Map{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"role":      u.Role,
		"tier":      u.Tier,
		"wholesale": ws,
	}
}
