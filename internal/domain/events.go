package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outbox task kinds enqueued by order commit.
const (
	TaskOrderConfirmation = "order.confirmation"
	TaskOrderExport       = "order.export"
)

// OrderEvent is the payload of both post-commit tasks.
type OrderEvent struct {
	OrderID        string           `json:"orderId"`
	Number         int64            `json:"number"`
	CustomerName   string           `json:"customerName"`
	CustomerEmail  string           `json:"customerEmail"`
	CustomerPhone  string           `json:"customerPhone,omitempty"`
	ShipAddress    string           `json:"shipAddress,omitempty"`
	ShipCity       string           `json:"shipCity,omitempty"`
	ShipProvince   string           `json:"shipProvince,omitempty"`
	Lines          []OrderEventLine `json:"lines"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	Discount       decimal.Decimal  `json:"discount"`
	Total          decimal.Decimal  `json:"total"`
	FreeShipping   bool             `json:"freeShipping"`
	CouponCode     string           `json:"couponCode,omitempty"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	ShippingMethod ShippingMethod   `json:"shippingMethod"`
	Status         string           `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type OrderEventLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Variant   string          `json:"variant,omitempty"`
}

func NewOrderEvent(o Order, couponCode string) OrderEvent {
	ev := OrderEvent{
		OrderID:        o.ID,
		Number:         o.Number,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		CustomerPhone:  o.CustomerPhone,
		ShipAddress:    o.ShipAddress,
		ShipCity:       o.ShipCity,
		ShipProvince:   o.ShipProvince,
		Subtotal:       o.Subtotal,
		Discount:       o.Discount,
		Total:          o.Total,
		FreeShipping:   o.FreeShipping,
		CouponCode:     couponCode,
		PaymentMethod:  o.PaymentMethod,
		ShippingMethod: o.ShippingMethod,
		Status:         o.Status,
		CreatedAt:      o.CreatedAt,
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, OrderEventLine{
			ProductID: l.ProductID,
			Name:      l.ProductName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
			Variant:   l.Variant,
		})
	}
	return ev
}
