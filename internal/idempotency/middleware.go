package idempotency

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "X-Idempotent-Replay"
)

type Config struct {
	Store Store
	TTL   time.Duration
	Clock func() time.Time
	// Identity scopes keys per caller; defaults to the authenticated user id.
	Identity func(c *fiber.Ctx) string
}

// New guards a route with the Idempotency-Key header. Requests without the
// header pass through. A key that already produced a 2xx response replays it.
func New(cfg Config) fiber.Handler {
	if cfg.Store == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Identity == nil {
		cfg.Identity = func(c *fiber.Ctx) string {
			id, _ := c.Locals("user_id").(string)
			return id
		}
	}

	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(HeaderKey))
		if key == "" {
			return c.Next()
		}
		if len(key) > 255 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "idempotency key too long"})
		}
		identity := cfg.Identity(c)
		scoped := identity + "|" + strings.Clone(key)
		fp := Fingerprint(c.Method(), c.Path(), identity, c.Body())
		ctx := c.UserContext()

		res, err := cfg.Store.Reserve(ctx, scoped, fp, cfg.Clock(), cfg.TTL)
		if err != nil {
			if errors.Is(err, ErrFingerprintMismatch) {
				applog.Security(c, "idempotency.mismatch", nil)
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "idempotency key was used for a different request"})
			}
			applog.Error(c, "idempotency.reserve.fail", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
		}

		switch res.State {
		case ReservationStateCompleted:
			c.Set(HeaderReplay, "true")
			if res.Record.ContentType != "" {
				c.Set(fiber.HeaderContentType, res.Record.ContentType)
			}
			return c.Status(res.Record.StatusCode).Send(res.Record.ResponseBody)
		case ReservationStatePending:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a request with this idempotency key is in progress"})
		}

		if err := c.Next(); err != nil {
			_ = cfg.Store.Release(ctx, scoped, fp)
			return err
		}
		status := c.Response().StatusCode()
		if status < 200 || status > 299 {
			if err := cfg.Store.Release(ctx, scoped, fp); err != nil {
				applog.Error(c, "idempotency.release.fail", err, nil)
			}
			return nil
		}
		resp := Response{
			StatusCode:  status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := cfg.Store.SaveResponse(ctx, scoped, fp, resp, cfg.Clock(), cfg.TTL); err != nil {
			applog.Error(c, "idempotency.save.fail", err, nil)
			_ = cfg.Store.Release(ctx, scoped, fp)
		}
		return nil
	}
}
