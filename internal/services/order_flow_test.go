package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/payments"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPayments struct {
	url   string
	err   error
	calls int
}

func (s *stubPayments) CreateRedirect(context.Context, payments.RedirectRequest) (string, error) {
	s.calls++
	return s.url, s.err
}

type countingNudger struct{ n int }

func (c *countingNudger) Nudge() { c.n++ }

type fixture struct {
	store  *repos.Store
	svc    *services.OrderService
	pay    *stubPayments
	nudger *countingNudger
}

func newFixture(t *testing.T, strict bool) fixture {
	t.Helper()
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, repos.Seed(ctx, store))
	f := fixture{store: store, pay: &stubPayments{url: "https://pay.test/1"}, nudger: &countingNudger{}}
	f.svc = services.NewOrderService(services.OrderDeps{
		Store:         store,
		Wholesale:     engine(false),
		Payments:      f.pay,
		Relay:         f.nudger,
		StrictCoupons: strict,
		Clock:         clockAt(fixedNow),
	})
	return f
}

func contact() domain.Contact {
	return domain.Contact{Name: "Ana", Surname: "Pérez", Email: "Ana@Example.com", Phone: "+54 11 5555-1234"}
}

func TestCommit_WholesaleWorkedExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		UserID:         "u-taller",
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "maceta-geo", Quantity: 2, Descriptor: "Size: XL"}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Total.Equal(dec("1700")), res.Order.Total.String())
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, int64(1001), res.Order.Number)
	assert.Empty(t, res.RedirectURL)
	assert.Equal(t, 0, f.pay.calls)
	assert.Equal(t, 1, f.nudger.n)

	stored, err := f.store.Orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", stored.CustomerName)
	assert.Equal(t, "ana@example.com", stored.CustomerEmail)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].UnitPrice.Equal(dec("850")))
	assert.Equal(t, "Size: XL", stored.Lines[0].Variant)

	p, err := f.store.Products.Get(ctx, "maceta-geo")
	require.NoError(t, err)
	assert.Equal(t, 38, p.Stock)

	tasks, err := f.store.Outbox.List(ctx, repos.OutboxPending, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	var ev domain.OrderEvent
	require.NoError(t, json.Unmarshal([]byte(tasks[0].Payload), &ev))
	assert.Equal(t, res.Order.ID, ev.OrderID)
}

func TestCommit_GuestPaysRetailAndGetsRedirect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "maceta-geo", Quantity: 1}},
		PaymentMethod:  domain.PaymentCard,
		ShippingMethod: domain.ShippingPostalCarrier,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Total.Equal(dec("1000")))
	assert.Equal(t, "https://pay.test/1", res.RedirectURL)
	assert.Equal(t, 1, f.pay.calls)
}

func TestCommit_PaymentFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.pay.err = errors.New("provider down")

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "llavero-logo", Quantity: 3}},
		PaymentMethod:  domain.PaymentOnlinePayment,
		ShippingMethod: domain.ShippingOwnDelivery,
	})
	require.NoError(t, err)
	assert.Empty(t, res.RedirectURL)
	_, err = f.store.Orders.Get(ctx, res.Order.ID)
	assert.NoError(t, err)
}

func TestCommit_CouponRedemption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	// guest, promo 5200 on lámpara: 2 units = 10400, 10% capped at 500
	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "lampara-luna", Quantity: 2, Descriptor: "Finish: Matte"}},
		PaymentMethod:  domain.PaymentBankTransfer,
		ShippingMethod: domain.ShippingPickup,
		CouponCode:     "save10",
	})
	require.NoError(t, err)
	assert.Nil(t, res.CouponNotApplied)
	assert.True(t, res.Order.Subtotal.Equal(dec("10400")))
	assert.True(t, res.Order.Discount.Equal(dec("500")))
	assert.True(t, res.Order.Total.Equal(dec("9900")))
	assert.Equal(t, "c-save10", res.Order.CouponID)

	c, err := f.store.Coupons.ByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)
	usages, err := f.store.Coupons.Usages(ctx, "c-save10")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, res.Order.ID, usages[0].OrderID)
	assert.True(t, usages[0].Discount.Equal(dec("500")))
}

func TestCommit_InapplicableCouponFailOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "llavero-logo", Quantity: 1}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
		CouponCode:     "MENOS1000",
	})
	require.NoError(t, err)
	require.NotNil(t, res.CouponNotApplied)
	assert.Equal(t, domain.CouponReasonBelowMinimum, res.CouponNotApplied.Reason)
	assert.True(t, res.Order.Total.Equal(dec("450")))
	assert.Empty(t, res.Order.CouponID)
}

func TestCommit_InapplicableCouponStrict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "llavero-logo", Quantity: 1}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
		CouponCode:     "NOPE",
	})
	var nae *domain.CouponNotApplicableError
	require.True(t, errors.As(err, &nae))
	assert.Equal(t, domain.CouponReasonNotFound, nae.Reason)
	orders, err := f.store.Orders.ListLatest(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCommit_InsufficientStockLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact: contact(),
		Lines: []domain.CartLine{
			{ProductID: "maceta-geo", Quantity: 1},
			{ProductID: "lampara-luna", Quantity: 9},
		},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
		CouponCode:     "SAVE10",
	})
	var ins *domain.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, "Lámpara luna", ins.Name)

	orders, err := f.store.Orders.ListLatest(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
	p, err := f.store.Products.Get(ctx, "maceta-geo")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Stock)
	c, err := f.store.Coupons.ByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsedCount)
	assert.Equal(t, 0, f.nudger.n)
}

func TestCommit_RepeatedProductCheckedTogether(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact: contact(),
		Lines: []domain.CartLine{
			{ProductID: "lampara-luna", Quantity: 5},
			{ProductID: "lampara-luna", Quantity: 4},
		},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	var ins *domain.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.Equal(t, 9, ins.Requested)
	assert.Equal(t, 8, ins.Available)
}

func TestCommit_ProductNotFound(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Commit(context.Background(), services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "ghost", Quantity: 1}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	var nf *domain.ProductNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.ProductID)
}

func TestCommit_Validation(t *testing.T) {
	f := newFixture(t, false)
	good := services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "maceta-geo", Quantity: 1}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	}
	cases := map[string]func(*services.CommitOrderCommand){
		"empty cart":   func(c *services.CommitOrderCommand) { c.Lines = nil },
		"no name":      func(c *services.CommitOrderCommand) { c.Contact.Name = " " },
		"bad email":    func(c *services.CommitOrderCommand) { c.Contact.Email = "nope" },
		"zero qty":     func(c *services.CommitOrderCommand) { c.Lines = []domain.CartLine{{ProductID: "maceta-geo"}} },
		"bad payment":  func(c *services.CommitOrderCommand) { c.PaymentMethod = "barter" },
		"bad shipping": func(c *services.CommitOrderCommand) { c.ShippingMethod = "drone" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := good
			cmd.Lines = append([]domain.CartLine(nil), good.Lines...)
			mutate(&cmd)
			_, err := f.svc.Commit(context.Background(), cmd)
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestCommit_PromotesRetailBuyer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		UserID:  "u-ana",
		Contact: contact(),
		Lines: []domain.CartLine{
			{ProductID: "maceta-geo", Quantity: 10},
			{ProductID: "llavero-logo", Quantity: 50},
		},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	require.NoError(t, err)
	// the order itself is still priced at retail
	assert.True(t, res.Order.Lines[0].UnitPrice.Equal(dec("1000")))

	u, err := f.store.Users.ByID(ctx, "u-ana")
	require.NoError(t, err)
	assert.Equal(t, domain.TierWholesale, u.Tier)
	assert.Equal(t, domain.WholesaleActive, u.WholesaleStatus)
	assert.Equal(t, 10, u.UnitsAccumulated, "non-qualifying units are not counted")
	require.NotNil(t, u.PeriodExpiresAt)
	assert.True(t, u.PeriodExpiresAt.Equal(services.NextPeriodExpiry(fixedNow, engine(false).Location)))
}

func TestCommit_TotalNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.store.Coupons.Insert(ctx, domain.Coupon{ID: "c-big", Code: "BIG", Kind: domain.CouponFixedAmount,
		Value: decimal.NewFromInt(100000), Active: true}))

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "llavero-logo", Quantity: 1}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
		CouponCode:     "BIG",
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Total.IsZero())
	assert.False(t, res.Order.Total.IsNegative())
}

func TestCommit_LargeQuantityWithinStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.store.Products.SetStock(ctx, "maceta-geo", 5000))

	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          []domain.CartLine{{ProductID: "maceta-geo", Quantity: 1000}},
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Total.Equal(dec("1000000")), res.Order.Total.String())

	p, err := f.store.Products.Get(ctx, "maceta-geo")
	require.NoError(t, err)
	assert.Equal(t, 4000, p.Stock)
}

func TestQuoteAndCommitAgreeOnMarkedUpDescriptor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	catalog := services.NewCatalogService(f.store, services.NewCouponService(f.store, clockAt(fixedNow)))
	lines := []domain.CartLine{{ProductID: " maceta-geo ", Quantity: 1, Descriptor: "Size: XL<b></b>"}}

	q, err := catalog.Quote(ctx, services.QuoteRequest{Lines: lines})
	require.NoError(t, err)
	res, err := f.svc.Commit(ctx, services.CommitOrderCommand{
		Contact:        contact(),
		Lines:          lines,
		PaymentMethod:  domain.PaymentCash,
		ShippingMethod: domain.ShippingPickup,
	})
	require.NoError(t, err)

	assert.True(t, q.Total.Equal(dec("1050")), q.Total.String())
	assert.True(t, res.Order.Total.Equal(q.Total), "quote %s commit %s", q.Total, res.Order.Total)
	assert.Equal(t, "Size: XL", q.Lines[0].Descriptor)
	// the caller's slice is not rewritten
	assert.Equal(t, "Size: XL<b></b>", lines[0].Descriptor)
}
