package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/http/handlers"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/idempotency"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/payments"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
)

var fixedNow = time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubPayments struct{ url string }

func (s stubPayments) CreateRedirect(context.Context, payments.RedirectRequest) (string, error) {
	return s.url, nil
}

type nudges struct{ n int }

func (r *nudges) Nudge() { r.n++ }

type testApp struct {
	app   *fiber.App
	store *repos.Store
	auth  *services.AuthService
	relay *nudges
}

type appOpts struct {
	strictCoupons bool
	orderLimit    int
}

func newTestApp(t *testing.T, opts appOpts) testApp {
	t.Helper()
	ctx := context.Background()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repos.NewStore(db)
	require.NoError(t, repos.Seed(ctx, store))

	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	relay := &nudges{}
	coupons := services.NewCouponService(store, clock)
	auth := services.NewAuthService(store.Users, "test-secret", clock)
	orders := services.NewOrderService(services.OrderDeps{
		Store:         store,
		Coupons:       coupons,
		Wholesale:     services.WholesaleEngine{MinInitialUnits: 10, MinMaintenanceUnits: 10, Location: loc},
		Payments:      stubPayments{url: "https://pay.test/session"},
		Relay:         relay,
		StrictCoupons: opts.strictCoupons,
		Clock:         clock,
	})

	deps := handlers.NewDeps(handlers.Services{
		Store:       store,
		Auth:        auth,
		Orders:      orders,
		Catalog:     services.NewCatalogService(store, coupons),
		Coupons:     coupons,
		Inventory:   services.NewInventoryService(store),
		Relay:       relay,
		Idempotency: idempotency.NewMemoryStore(),
		Clock:       clock,
		OrderLimit:  opts.orderLimit,
	})
	return testApp{app: handlers.NewApp(deps), store: store, auth: auth, relay: relay}
}

// token issues a bearer token for a seeded user.
func (a testApp) token(t *testing.T, userID string) string {
	t.Helper()
	u, err := a.store.Users.ByID(context.Background(), userID)
	require.NoError(t, err)
	tok, err := a.auth.Issue(u)
	require.NoError(t, err)
	return tok
}

type reply struct {
	status int
	header map[string]string
	body   map[string]any
	raw    string
}

func (a testApp) do(t *testing.T, method, path, token string, body any, headers ...string) reply {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	r := reply{status: resp.StatusCode, raw: string(raw), header: map[string]string{}}
	for k := range resp.Header {
		r.header[k] = resp.Header.Get(k)
	}
	_ = json.Unmarshal(raw, &r.body)
	return r
}

func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := applog.Set(zap.New(core))
	t.Cleanup(func() { applog.Set(prev) })
	return logs
}

func orderBody(items ...map[string]any) map[string]any {
	return map[string]any{
		"items":          items,
		"customer":       map[string]any{"name": "Ana", "surname": "Pérez", "email": "ana@example.com", "phone": "+54 11 5555-1234"},
		"paymentMethod":  "cash",
		"shippingMethod": "pickup",
	}
}

func item(id string, qty int, variant string) map[string]any {
	return map[string]any{"productId": id, "quantity": qty, "variantDescriptor": variant}
}
