package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/payments"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/validate"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const orderCounter = "order_number"

type CommitOrderCommand struct {
	UserID         string
	Contact        domain.Contact
	Lines          []domain.CartLine
	PaymentMethod  domain.PaymentMethod
	ShippingMethod domain.ShippingMethod
	CouponCode     string
}

type CommitResult struct {
	Order       domain.Order
	RedirectURL string
	// CouponNotApplied is set when a submitted coupon was ignored.
	CouponNotApplied *domain.CouponNotApplicableError
}

// Nudger wakes the outbox relay after a commit.
type Nudger interface{ Nudge() }

type OrderDeps struct {
	Store         *repos.Store
	Coupons       *CouponService
	Wholesale     WholesaleEngine
	Payments      payments.Provider
	Relay         Nudger
	StrictCoupons bool
	Currency      string
	Clock         func() time.Time
	NewID         func() string
}

type OrderService struct {
	deps OrderDeps
}

func NewOrderService(deps OrderDeps) *OrderService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Payments == nil {
		deps.Payments = payments.NoopProvider{}
	}
	if deps.Coupons == nil {
		deps.Coupons = NewCouponService(deps.Store, deps.Clock)
	}
	return &OrderService{deps: deps}
}

// Commit prices the cart authoritatively and persists the order, its lines,
// the coupon redemption, stock decrements, the buyer's tier update and the
// post-commit tasks in one transaction.
func (s *OrderService) Commit(ctx context.Context, cmd CommitOrderCommand) (CommitResult, error) {
	cmd, err := normalizeCommand(cmd)
	if err != nil {
		return CommitResult{}, err
	}

	var res CommitResult
	now := s.deps.Clock()

	err = retryOnConflict(commitAttempts, func() error {
		return s.deps.Store.WithTx(ctx, func(r repos.Repos) error {
			var err error
			res, err = s.commitTx(ctx, r, cmd, now)
			return err
		})
	})
	if err != nil {
		return CommitResult{}, err
	}

	if res.Order.PaymentMethod.RequiresRedirect() {
		res.RedirectURL = s.paymentRedirect(ctx, res.Order)
	}
	if s.deps.Relay != nil {
		s.deps.Relay.Nudge()
	}
	return res, nil
}

// commitAttempts bounds how often a commit is replayed after a product or
// buyer row changed between read and write.
const commitAttempts = 3

func retryOnConflict(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *OrderService) commitTx(ctx context.Context, r repos.Repos, cmd CommitOrderCommand, now time.Time) (CommitResult, error) {
	var res CommitResult
	var couponCode string
	var buyer *domain.User
	tier := domain.TierRetail
	if cmd.UserID != "" {
		u, err := r.Users.ByID(ctx, cmd.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return CommitResult{}, domain.ErrUnauthorized
		}
		if err != nil {
			return CommitResult{}, persistence(err)
		}
		buyer, tier = u, u.Tier
	}

	cart, err := priceCart(ctx, r.Products, tier, cmd.Lines)
	if err != nil {
		return CommitResult{}, err
	}

	var red *Redemption
	discount := decimal.Zero
	if cmd.CouponCode != "" {
		got, err := s.deps.Coupons.Apply(ctx, r, cmd.CouponCode, cart.Subtotal)
		var nae *domain.CouponNotApplicableError
		switch {
		case errors.As(err, &nae):
			if s.deps.StrictCoupons {
				return CommitResult{}, nae
			}
			res.CouponNotApplied = nae
		case err != nil:
			return CommitResult{}, err
		default:
			red = &got
			discount = got.Amount
			couponCode = got.Coupon.Code
		}
	}
	total := cart.Subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	number, err := r.Counters.Next(ctx, orderCounter)
	if err != nil {
		return CommitResult{}, persistence(err)
	}

	o := domain.Order{
		ID:             s.deps.NewID(),
		Number:         number,
		UserID:         cmd.UserID,
		CustomerName:   fullName(cmd.Contact),
		CustomerEmail:  cmd.Contact.Email,
		CustomerPhone:  cmd.Contact.Phone,
		TaxID:          cmd.Contact.TaxID,
		ShipAddress:    cmd.Contact.Address,
		ShipCity:       cmd.Contact.City,
		ShipProvince:   cmd.Contact.Province,
		ShipPostalCode: cmd.Contact.PostalCode,
		Subtotal:       cart.Subtotal,
		Discount:       discount,
		Total:          total,
		Status:         domain.OrderStatusPending,
		PaymentMethod:  cmd.PaymentMethod,
		ShippingMethod: cmd.ShippingMethod,
		CreatedAt:      now,
	}
	if red != nil {
		o.CouponID = red.Coupon.ID
		o.FreeShipping = red.FreeShipping
	}
	for i, pl := range cart.Lines {
		o.Lines = append(o.Lines, domain.OrderLine{
			OrderID:     o.ID,
			LineNo:      i + 1,
			ProductID:   pl.Product.ID,
			ProductName: pl.Product.Name,
			Quantity:    pl.Quantity,
			UnitPrice:   pl.UnitPrice,
			Subtotal:    pl.Subtotal,
			Variant:     pl.Descriptor,
		})
	}

	if err := r.Orders.Insert(ctx, o); err != nil {
		return CommitResult{}, persistence(err)
	}
	if err := r.Orders.InsertLines(ctx, o.Lines); err != nil {
		return CommitResult{}, persistence(err)
	}
	if red != nil {
		if err := s.deps.Coupons.RecordUsage(ctx, r, *red, o.ID, o.CustomerEmail); err != nil {
			return CommitResult{}, err
		}
	}
	if err := decrementStock(ctx, r.Products, cart); err != nil {
		return CommitResult{}, err
	}

	if buyer != nil {
		next, changed := s.deps.Wholesale.UpdateTier(buyer.WholesaleState(), cart.QualifyingUnits, now)
		if changed {
			if err := r.Users.UpdateWholesale(ctx, buyer.ID, buyer.Version, next); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return CommitResult{}, err
				}
				return CommitResult{}, persistence(err)
			}
		}
	}

	if err := enqueueOrderTasks(ctx, r.Outbox, o, couponCode, now); err != nil {
		return CommitResult{}, err
	}
	res.Order = o
	return res, nil
}

// paymentRedirect never fails the order; errors only reach the log.
func (s *OrderService) paymentRedirect(ctx context.Context, o domain.Order) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	req := payments.RedirectRequest{
		OrderID:  o.ID,
		Number:   o.Number,
		Email:    o.CustomerEmail,
		Currency: s.deps.Currency,
		Discount: o.Discount,
		Total:    o.Total,
	}
	for _, l := range o.Lines {
		req.Lines = append(req.Lines, payments.RedirectLine{Name: l.ProductName, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	url, err := s.deps.Payments.CreateRedirect(ctx, req)
	if err != nil {
		log.Bg("order.payment_redirect.fail", err, map[string]any{"order_id": o.ID, "number": o.Number})
		return ""
	}
	return url
}

// decrementStock issues one conditional update per product, guarded by the
// version read while pricing.
func decrementStock(ctx context.Context, products *repos.ProductRepo, cart PricedCart) error {
	type want struct {
		qty     int
		version int64
	}
	order := []string{}
	byID := map[string]*want{}
	for _, l := range cart.Lines {
		w, ok := byID[l.Product.ID]
		if !ok {
			w = &want{version: l.Product.Version}
			byID[l.Product.ID] = w
			order = append(order, l.Product.ID)
		}
		w.qty += l.Quantity
	}
	for _, id := range order {
		w := byID[id]
		err := products.DecrementStock(ctx, id, w.qty, w.version)
		var ins *domain.InsufficientStockError
		switch {
		case err == nil:
		case errors.As(err, &ins), errors.Is(err, domain.ErrConflict):
			return err
		default:
			return persistence(err)
		}
	}
	return nil
}

var entropy = ulid.DefaultEntropy()

func enqueueOrderTasks(ctx context.Context, outbox *repos.OutboxRepo, o domain.Order, couponCode string, now time.Time) error {
	payload, err := json.Marshal(domain.NewOrderEvent(o, couponCode))
	if err != nil {
		return err
	}
	for _, kind := range []string{domain.TaskOrderConfirmation, domain.TaskOrderExport} {
		id, err := ulid.New(ulid.Timestamp(now), entropy)
		if err != nil {
			return err
		}
		if err := outbox.Enqueue(ctx, id.String(), kind, string(payload), now); err != nil {
			return persistence(err)
		}
	}
	return nil
}

func fullName(c domain.Contact) string {
	if c.Surname == "" {
		return c.Name
	}
	return c.Name + " " + c.Surname
}

// normalizeLines is the cart-line cleanup shared by checkout and quotes, so
// both price the same descriptor.
func normalizeLines(in []domain.CartLine) ([]domain.CartLine, error) {
	if len(in) == 0 {
		return nil, domain.Invalid("items", "cart is empty")
	}
	lines := append([]domain.CartLine(nil), in...)
	for i, l := range lines {
		id, ok := validate.ID(l.ProductID)
		if !ok {
			return nil, domain.Invalid("items", "invalid product id")
		}
		if !validate.Qty(l.Quantity) {
			return nil, domain.Invalid("quantity", "must be a positive whole number")
		}
		lines[i].ProductID = id
		lines[i].Descriptor = validate.Text(l.Descriptor, 200)
	}
	return lines, nil
}

func normalizeCommand(cmd CommitOrderCommand) (CommitOrderCommand, error) {
	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return cmd, err
	}
	cmd.Lines = lines

	c := cmd.Contact
	name, ok := validate.Name(c.Name)
	if !ok {
		return cmd, domain.Invalid("customer.name", "is required")
	}
	email, ok := validate.Email(c.Email)
	if !ok {
		return cmd, domain.Invalid("customer.email", "must be a valid email")
	}
	c.Name, c.Email = name, email
	c.Surname = validate.Text(c.Surname, 80)
	if c.Phone, ok = validate.Phone(c.Phone); !ok {
		return cmd, domain.Invalid("customer.phone", "invalid phone number")
	}
	if c.TaxID, ok = validate.TaxID(c.TaxID); !ok {
		return cmd, domain.Invalid("customer.taxId", "invalid tax id")
	}
	if c.PostalCode, ok = validate.PostalCode(c.PostalCode); !ok {
		return cmd, domain.Invalid("customer.postalCode", "invalid postal code")
	}
	c.Address = validate.Text(c.Address, 200)
	c.City = validate.Text(c.City, 80)
	c.Province = validate.Text(c.Province, 80)
	cmd.Contact = c

	if !cmd.PaymentMethod.Valid() {
		return cmd, domain.Invalid("paymentMethod", "unsupported payment method")
	}
	if !cmd.ShippingMethod.Valid() {
		return cmd, domain.Invalid("shippingMethod", "unsupported shipping method")
	}
	cmd.CouponCode = NormalizeCode(cmd.CouponCode)
	return cmd, nil
}
