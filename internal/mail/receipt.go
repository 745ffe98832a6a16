// Package mail sends transactional receipt emails through Resend.
package mail

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/domain/order"
)

// DefaultBaseURL is the production Resend API endpoint.
const DefaultBaseURL = "https://api.resend.com"

var _ order.ReceiptMailer = (*Mailer)(nil)

// Mailer renders HTML receipts and delivers them via Resend. Without an API
// key it degrades to logging the would-be send, so local environments work
// without credentials.
type Mailer struct {
	http    *http.Client
	baseURL string
	apiKey  string
	from    string
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithBaseURL overrides the API endpoint; used by tests.
func WithBaseURL(u string) Option {
	return func(m *Mailer) { m.baseURL = u }
}

// NewMailer creates a Resend-backed Mailer. An empty apiKey disables real
// delivery.
func NewMailer(apiKey, from string, opts ...Option) *Mailer {
	m := &Mailer{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		from:    from,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendReceipt renders the receipt for the order's current state and emails it.
func (m *Mailer) SendReceipt(ctx context.Context, o *order.Order, email string, status order.ReceiptStatus) error {
	subject := "Your order " + o.Number() + " is on its way"
	if status == order.ReceiptDelivered {
		subject = "Your order " + o.Number() + " has been delivered"
	}

	html, err := renderReceipt(o, status)
	if err != nil {
		return errors.Wrap(err, "render receipt")
	}

	if m.apiKey == "" {
		zctx.From(ctx).Info("Email delivery disabled, receipt not sent",
			zap.String("to", email),
			zap.String("subject", subject))
		return nil
	}
	return m.send(ctx, email, subject, html)
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("from", func(e *jx.Encoder) { e.Str(m.from) })
		e.Field("to", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) { e.Str(to) })
		})
		e.Field("subject", func(e *jx.Encoder) { e.Str(subject) })
		e.Field("html", func(e *jx.Encoder) { e.Str(html) })
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "resend request")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("resend: status %d", resp.StatusCode)
	}
	return nil
}

type receiptData struct {
	OrderNumber string
	Headline    string
	Items       []receiptItem
	Subtotal    string
	Tax         string
	Delivery    string
	Total       string
	Tracking    string
}

type receiptItem struct {
	Name     string
	Quantity int
	Amount   string
}

func renderReceipt(o *order.Order, status order.ReceiptStatus) (string, error) {
	data := receiptData{
		OrderNumber: o.Number(),
		Headline:    "Your order is on its way.",
		Subtotal:    formatAmount(o.Subtotal),
		Tax:         formatAmount(o.TaxAmount),
		Delivery:    formatAmount(o.DeliveryFee),
		Total:       formatAmount(o.Total),
		Tracking:    o.TrackingCode,
	}
	if status == order.ReceiptDelivered {
		data.Headline = "Your order has been delivered."
		data.Tracking = ""
	}
	for _, it := range o.Items {
		data.Items = append(data.Items, receiptItem{
			Name:     it.ProductName,
			Quantity: it.Quantity,
			Amount:   formatAmount(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))),
		})
	}

	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatAmount(d decimal.Decimal) string {
	return "₦" + d.StringFixed(2)
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Order {{.OrderNumber}}</h2>
  <p>{{.Headline}}</p>
  {{if .Tracking}}<p>Tracking code: <strong>{{.Tracking}}</strong></p>{{end}}
  <table width="100%" cellpadding="6" style="border-collapse: collapse;">
    <tr style="text-align: left; border-bottom: 1px solid #ddd;">
      <th>Item</th><th>Qty</th><th>Amount</th>
    </tr>
    {{range .Items}}
    <tr>
      <td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Amount}}</td>
    </tr>
    {{end}}
  </table>
  <p>
    Subtotal: {{.Subtotal}}<br>
    Tax: {{.Tax}}<br>
    Delivery: {{.Delivery}}<br>
    <strong>Total: {{.Total}}</strong>
  </p>
</body>
</html>`))
