package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Currency   string
	Backends   *stripe.Backends

	sessions stripeSessionAPI
}

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	currency   string
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	sessions := cfg.sessions
	if sessions == nil {
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "ars"
	}
	return &StripeProvider{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		currency:   currency,
	}, nil
}

// CreateRedirect opens a payment-mode checkout session and returns its URL.
// With a discount the order is charged as a single line for the total.
func (p *StripeProvider) CreateRedirect(ctx context.Context, req RedirectRequest) (string, error) {
	if p == nil {
		return "", errors.New("stripe: provider is nil")
	}
	currency := p.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("order_number", strconv.FormatInt(req.Number, 10))

	if req.Discount.IsPositive() || len(req.Lines) == 0 {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			priceLine(fmt.Sprintf("Pedido #%d", req.Number), 1, minorUnits(req.Total), currency),
		}
	} else {
		for _, l := range req.Lines {
			params.LineItems = append(params.LineItems, priceLine(l.Name, int64(l.Quantity), minorUnits(l.UnitPrice), currency))
		}
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return session.URL, nil
}

func priceLine(name string, qty, amount int64, currency string) *stripe.CheckoutSessionLineItemParams {
	if qty < 1 {
		qty = 1
	}
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(qty),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}
