// Package payment reconciles orders against the payment gateway: it
// initializes gateway transactions for pending orders and verifies their
// outcome, promoting the order exactly once on success.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/order"
)

// Payment statuses.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

var (
	// ErrNotFound is returned when no payment matches the reference.
	ErrNotFound = errors.New("payment not found")
	// ErrAlreadyPaid rejects initiating payment for an order that is paid.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrGateway marks failures talking to the payment provider, surfaced
	// as 502 at the HTTP boundary.
	ErrGateway = errors.New("payment gateway error")
)

// Payment is the gateway-facing record for an order. One payment row exists
// per order; re-initiating replaces the reference before the first success.
type Payment struct {
	ID        string
	OrderID   string
	UserID    string
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	Channel   string
	PaidAt    *time.Time
	CreatedAt time.Time
}

// NewReference derives a gateway transaction reference that is unique per
// initiation attempt yet traceable back to the order.
func NewReference(now time.Time, orderID string) string {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("ref_%d_%s", now.UnixMilli(), short)
}

// InitializeRequest is what the gateway needs to open a transaction.
type InitializeRequest struct {
	Email     string
	Amount    decimal.Decimal
	Currency  string
	Reference string
	Metadata  map[string]any
}

// Authorization is the gateway's handle for a freshly opened transaction.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the gateway's view of a transaction outcome.
type VerifyResult struct {
	Status   string
	Amount   decimal.Decimal
	Currency string
	Channel  string
	PaidAt   *time.Time
}

// Succeeded reports whether the gateway settled the transaction.
func (r *VerifyResult) Succeeded() bool { return r.Status == "success" }

// Gateway abstracts the payment provider.
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// Store provides payment persistence plus the order touch-points
// reconciliation needs.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// ByReference returns the payment carrying the reference, or ErrNotFound.
	ByReference(ctx context.Context, reference string) (*Payment, error)
	// ByOrder returns the order's payment, or (nil, nil) when none exists.
	ByOrder(ctx context.Context, orderID string) (*Payment, error)
	// ListForUser returns the user's payments, newest first.
	ListForUser(ctx context.Context, userID string) ([]Payment, error)
	// Upsert inserts the payment or replaces the existing row for its order.
	Upsert(ctx context.Context, p *Payment) error
	// MarkOutcome finalizes the payment row after verification.
	MarkOutcome(ctx context.Context, paymentID, status, channel string, paidAt *time.Time) error

	// OrderForUser returns the order with its buyer when it belongs to the
	// user, or order.ErrNotFound.
	OrderForUser(ctx context.Context, orderID, userID string) (*order.Order, *order.UserInfo, error)
	// SetOrderPaid marks the order paid and moves it to processing.
	SetOrderPaid(ctx context.Context, orderID string) error
	// SetOrderPaymentFailed records a failed payment on the order.
	SetOrderPaymentFailed(ctx context.Context, orderID string) error
}
