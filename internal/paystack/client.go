// Package paystack is the Paystack implementation of the payment gateway.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/payment"
)

// DefaultBaseURL is the production Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

var _ payment.Gateway = (*Client)(nil)

// Client talks to the Paystack transaction API. Amounts cross the wire in
// kobo, the minor unit; conversion happens at this boundary only.
type Client struct {
	http      *http.Client
	baseURL   string
	secretKey string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint; used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Paystack client authenticated with the secret key.
func NewClient(secretKey string, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   DefaultBaseURL,
		secretKey: secretKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize opens a Paystack transaction and returns the checkout handle.
func (c *Client) Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.Authorization, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("email", func(e *jx.Encoder) { e.Str(req.Email) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(toKobo(req.Amount)) })
		e.Field("reference", func(e *jx.Encoder) { e.Str(req.Reference) })
		if req.Currency != "" {
			e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		}
		if len(req.Metadata) > 0 {
			raw, err := json.Marshal(req.Metadata)
			if err == nil {
				e.Field("metadata", func(e *jx.Encoder) { e.Raw(raw) })
			}
		}
	})

	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", e.Bytes(), &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, errors.Errorf("paystack: initialize rejected: %s", out.Message)
	}

	return &payment.Authorization{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

// Verify fetches the settled state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	var out struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status   string `json:"status"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Channel  string `json:"channel"`
			PaidAt   string `json:"paid_at"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, errors.Errorf("paystack: verify rejected: %s", out.Message)
	}

	res := &payment.VerifyResult{
		Status:   out.Data.Status,
		Amount:   fromKobo(out.Data.Amount),
		Currency: out.Data.Currency,
		Channel:  out.Data.Channel,
	}
	if out.Data.PaidAt != "" {
		if ts, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			res.PaidAt = &ts
		}
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(payment.ErrGateway, "paystack request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(payment.ErrGateway, "paystack: %s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func toKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromKobo(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100))
}
