package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"

	html "github.com/gofiber/template/html/v2"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/messaging"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Email is the message consumed by the mail sender listening on the notify topic.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	OrderID string `json:"orderId"`
}

// ExportRow is one flat spreadsheet row per order line.
type ExportRow struct {
	OrderID        string `json:"orderId"`
	Number         int64  `json:"number"`
	CreatedAt      string `json:"createdAt"`
	Customer       string `json:"customer"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	ProductID      string `json:"productId"`
	Product        string `json:"product"`
	Variant        string `json:"variant,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPrice      string `json:"unitPrice"`
	LineSubtotal   string `json:"lineSubtotal"`
	OrderDiscount  string `json:"orderDiscount"`
	OrderTotal     string `json:"orderTotal"`
	CouponCode     string `json:"couponCode,omitempty"`
	PaymentMethod  string `json:"paymentMethod"`
	ShippingMethod string `json:"shippingMethod"`
}

func NewEngine() (*html.Engine, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("money", func(d decimal.Decimal) string { return d.StringFixed(2) })
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return engine, nil
}

func decodeEvent(task repos.OutboxTask) (domain.OrderEvent, error) {
	var ev domain.OrderEvent
	if err := json.Unmarshal([]byte(task.Payload), &ev); err != nil {
		return ev, fmt.Errorf("decode %s payload: %w", task.Kind, err)
	}
	return ev, nil
}

type ConfirmationHandler struct {
	pub    messaging.Publisher
	topic  string
	engine *html.Engine
}

func NewConfirmationHandler(pub messaging.Publisher, topic string, engine *html.Engine) *ConfirmationHandler {
	return &ConfirmationHandler{pub: pub, topic: topic, engine: engine}
}

// Handle renders the confirmation email and hands it to the mail topic.
func (h *ConfirmationHandler) Handle(ctx context.Context, task repos.OutboxTask) error {
	ev, err := decodeEvent(task)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.engine.Render(&buf, "confirmation", ev); err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return h.pub.PublishEvent(ctx, h.topic, ev.OrderID, Email{
		To:      ev.CustomerEmail,
		Subject: fmt.Sprintf("Pedido #%d recibido", ev.Number),
		HTML:    buf.String(),
		OrderID: ev.OrderID,
	})
}

type ExportHandler struct {
	pub   messaging.Publisher
	topic string
}

func NewExportHandler(pub messaging.Publisher, topic string) *ExportHandler {
	return &ExportHandler{pub: pub, topic: topic}
}

// Handle publishes one row per line keyed by order id so a consumer can
// upsert them into the sheet.
func (h *ExportHandler) Handle(ctx context.Context, task repos.OutboxTask) error {
	ev, err := decodeEvent(task)
	if err != nil {
		return err
	}
	return h.pub.PublishEvent(ctx, h.topic, ev.OrderID, ExportRows(ev))
}

func ExportRows(ev domain.OrderEvent) []ExportRow {
	rows := make([]ExportRow, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		rows = append(rows, ExportRow{
			OrderID:        ev.OrderID,
			Number:         ev.Number,
			CreatedAt:      ev.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			Customer:       ev.CustomerName,
			Email:          ev.CustomerEmail,
			Phone:          ev.CustomerPhone,
			ProductID:      l.ProductID,
			Product:        l.Name,
			Variant:        l.Variant,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice.StringFixed(2),
			LineSubtotal:   l.Subtotal.StringFixed(2),
			OrderDiscount:  ev.Discount.StringFixed(2),
			OrderTotal:     ev.Total.StringFixed(2),
			CouponCode:     ev.CouponCode,
			PaymentMethod:  string(ev.PaymentMethod),
			ShippingMethod: string(ev.ShippingMethod),
		})
	}
	return rows
}
