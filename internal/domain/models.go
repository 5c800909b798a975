package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VariantOption struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	PriceDelta     decimal.Decimal     `json:"price_delta"`
	WholesalePrice decimal.NullDecimal `json:"wholesale_price"`
}

type VariantGroup struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Options []VariantOption `json:"options"`
}

type Product struct {
	ID                    string              `db:"id"`
	Name                  string              `db:"name"`
	Price                 decimal.Decimal     `db:"price"`
	PromoPrice            decimal.NullDecimal `db:"promo_price"`
	WholesalePrice        decimal.NullDecimal `db:"wholesale_price"`
	Stock                 int                 `db:"stock"`
	VariantsJSON          string              `db:"variants_json"`
	CountsTowardWholesale bool                `db:"counts_toward_wholesale"`
	Active                bool                `db:"active"`
	Version               int64               `db:"version"`

	Variants []VariantGroup `db:"-"`
}

// VariantSelection is the structured form of a chosen option.
type VariantSelection struct {
	GroupID  string `json:"groupId"`
	OptionID string `json:"optionId"`
}

type CartLine struct {
	ProductID  string
	Quantity   int
	Descriptor string
	Options    []VariantSelection
}

type Contact struct {
	Name       string
	Surname    string
	Email      string
	Phone      string
	TaxID      string
	Address    string
	City       string
	Province   string
	PostalCode string
}

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentBankTransfer  PaymentMethod = "bankTransfer"
	PaymentOnlinePayment PaymentMethod = "onlinePayment"
	PaymentCard          PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentOnlinePayment, PaymentCard:
		return true
	}
	return false
}

// RequiresRedirect reports whether checkout hands the buyer to a payment provider.
func (m PaymentMethod) RequiresRedirect() bool {
	return m == PaymentOnlinePayment || m == PaymentCard
}

type ShippingMethod string

const (
	ShippingPickup        ShippingMethod = "pickup"
	ShippingPostalCarrier ShippingMethod = "postalCarrier"
	ShippingOwnDelivery   ShippingMethod = "ownDelivery"
)

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingPickup, ShippingPostalCarrier, ShippingOwnDelivery:
		return true
	}
	return false
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is a status fulfillment may set.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID             string          `db:"id"`
	Number         int64           `db:"number"`
	UserID         string          `db:"user_id"`
	CustomerName   string          `db:"customer_name"`
	CustomerEmail  string          `db:"customer_email"`
	CustomerPhone  string          `db:"customer_phone"`
	TaxID          string          `db:"tax_id"`
	ShipAddress    string          `db:"ship_address"`
	ShipCity       string          `db:"ship_city"`
	ShipProvince   string          `db:"ship_province"`
	ShipPostalCode string          `db:"ship_postal_code"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	Discount       decimal.Decimal `db:"discount"`
	Total          decimal.Decimal `db:"total"`
	FreeShipping   bool            `db:"free_shipping"`
	Status         string          `db:"status"`
	PaymentMethod  PaymentMethod   `db:"payment_method"`
	ShippingMethod ShippingMethod  `db:"shipping_method"`
	CouponID       string          `db:"coupon_id"`
	CreatedAt      time.Time       `db:"created_at"`
	Lines          []OrderLine     `db:"-"`
}

type OrderLine struct {
	OrderID     string          `db:"order_id"`
	LineNo      int             `db:"line_no"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"qty"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Subtotal    decimal.Decimal `db:"subtotal"`
	Variant     string          `db:"variant"`
}

type CouponKind string

const (
	CouponPercentage   CouponKind = "percentage"
	CouponFixedAmount  CouponKind = "fixed"
	CouponFreeShipping CouponKind = "free_shipping"
)

type Coupon struct {
	ID          string              `db:"id"`
	Code        string              `db:"code"`
	Kind        CouponKind          `db:"kind"`
	Value       decimal.Decimal     `db:"value"`
	MinPurchase decimal.NullDecimal `db:"min_purchase"`
	MaxDiscount decimal.NullDecimal `db:"max_discount"`
	UsageLimit  *int                `db:"usage_limit"`
	UsedCount   int                 `db:"used_count"`
	StartsAt    *time.Time          `db:"starts_at"`
	EndsAt      *time.Time          `db:"ends_at"`
	Active      bool                `db:"active"`
	Version     int64               `db:"version"`
}

type CouponUsage struct {
	CouponID  string          `db:"coupon_id"`
	Email     string          `db:"email"`
	OrderID   string          `db:"order_id"`
	Discount  decimal.Decimal `db:"discount"`
	CreatedAt time.Time       `db:"created_at"`
}

// Availability is the buyer-facing stock band of a product.
type Availability struct {
	Status string `json:"status"`
	Qty    int    `json:"qty"`
}
