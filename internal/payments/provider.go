package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider turns a committed order into a hosted payment page URL.
type Provider interface {
	CreateRedirect(ctx context.Context, req RedirectRequest) (string, error)
}

type RedirectRequest struct {
	OrderID  string
	Number   int64
	Email    string
	Currency string
	Lines    []RedirectLine
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type RedirectLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// NoopProvider is used when no payment provider is configured.
type NoopProvider struct{}

func (NoopProvider) CreateRedirect(context.Context, RedirectRequest) (string, error) { return "", nil }

// minorUnits converts an amount to cents, rounding half away from zero.
func minorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
