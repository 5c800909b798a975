package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/idempotency"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Store       *repos.Store
	Auth        *services.AuthService
	Orders      *services.OrderService
	Catalog     *services.CatalogService
	Coupons     *services.CouponService
	Inventory   *services.InventoryService
	Relay       services.Nudger
	Idempotency idempotency.Store
	Clock       func() time.Time
	// OrderLimit caps order submissions per IP per minute; zero disables it.
	OrderLimit int
}

type Deps struct {
	Auth        *services.AuthService
	AuthHandler *AuthHandler
	Orders      *OrderHandler
	Coupons     *CouponHandler
	Inventory   *InventoryHandler
	Products    *ProductHandler
	Admin       *AdminHandler

	idem       fiber.Handler
	orderLimit int
}

func NewDeps(s Services) *Deps {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return &Deps{
		Auth:        s.Auth,
		AuthHandler: &AuthHandler{Auth: s.Auth, Users: s.Store.Users},
		Orders:      &OrderHandler{Orders: s.Orders, Catalog: s.Catalog, Repo: s.Store.Orders},
		Coupons:     &CouponHandler{Coupons: s.Coupons},
		Inventory:   &InventoryHandler{Inv: s.Inventory},
		Products:    &ProductHandler{Catalog: s.Catalog},
		Admin: &AdminHandler{
			OrderRepo:  s.Store.Orders,
			OutboxRepo: s.Store.Outbox,
			Inv:        s.Inventory,
			Relay:      s.Relay,
			Clock:      s.Clock,
		},
		idem:       idempotency.New(idempotency.Config{Store: s.Idempotency, Clock: s.Clock}),
		orderLimit: s.OrderLimit,
	}
}

const bodyLimit = 1 << 20 // 1 MiB

// NewApp builds the fiber app with the global middleware and every route.
func NewApp(d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler,
	})
	app.Use(requestid.New())
	app.Use(AccessLog())
	app.Use(recover.New())
	app.Use(helmet.New())
	d.Mount(app)
	return app
}

// AccessLog writes one http.access line per request after it is handled.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// let the error handler set the final status before logging
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		applog.Info(c, "http.access", map[string]any{"latency_ms": time.Since(start).Milliseconds()})
		return nil
	}
}

// Mount registers the API routes on app.
func (d *Deps) Mount(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	api := app.Group("/api/v1", Bearer(d.Auth))

	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)

	orderGuards := []fiber.Handler{}
	if d.orderLimit > 0 {
		orderGuards = append(orderGuards, limiter.New(limiter.Config{
			Max:          d.orderLimit,
			Expiration:   time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|orders" },
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.orders.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}))
	}
	api.Post("/orders", append(orderGuards, d.idem, d.Orders.Commit)...)
	api.Post("/orders/quote", d.Orders.Quote)
	api.Get("/orders/:id", d.Orders.View)
	api.Post("/coupons/validate", d.Coupons.Validate)
	api.Get("/availability", d.Inventory.Check)
	api.Get("/products/:id", d.Products.Detail)

	me := api.Group("/me", RequireUser())
	me.Get("/", d.AuthHandler.Me)
	me.Get("/orders", d.Orders.History)

	admin := api.Group("/admin", RequireAdmin())
	admin.Get("/orders", d.Admin.Orders)
	admin.Post("/orders/:id/status", d.Admin.UpdateOrderStatus)
	admin.Post("/inventory", d.Admin.SetStock)
	admin.Get("/outbox", d.Admin.Outbox)
	admin.Post("/outbox/:id/retry", d.Admin.RetryTask)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Page not found"})
	})
}
