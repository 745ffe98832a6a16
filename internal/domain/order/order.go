// Package order implements the checkout orchestrator, the order summary
// builder, and the fulfillment state machine.
package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Order lifecycle statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusShipped    = "SHIPPED"
	StatusDelivered  = "DELIVERED"
	StatusCancelled  = "CANCELLED"
)

// Payment statuses.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Delivery statuses. The empty string means delivery has not started.
const (
	DeliveryInTransit = "IN_TRANSIT"
	DeliveryDelivered = "DELIVERED"
)

var (
	// ErrNotFound is returned when an order does not exist or is not
	// visible to the requesting user.
	ErrNotFound = errors.New("order not found")
	// ErrCartEmpty rejects a checkout against an empty cart.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrAddressNotFound rejects a checkout whose billing address is
	// missing or owned by another user.
	ErrAddressNotFound = errors.New("billing address not found")
	// ErrStoreLocationRequired rejects a pickup checkout without a store.
	ErrStoreLocationRequired = errors.New("store location is required for pickup")
	// ErrStoreLocationNotFound rejects a pickup checkout against an
	// unknown store location.
	ErrStoreLocationNotFound = errors.New("store location not found")
)

// Order is created once per checkout. The monetary fields are a snapshot
// taken at creation time and are never recomputed afterwards; the invariant
// total == subtotal + taxAmount + deliveryFee - discount holds with the
// discount derived, not stored.
type Order struct {
	ID              string
	UserID          string
	AddressID       string
	StoreLocationID string
	DeliveryType    string
	CouponCode      string

	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal

	Status         string
	PaymentStatus  string
	DeliveryStatus string

	TrackingCode string
	DeliveryDate *time.Time
	ShippingDate *time.Time
	DeliveredAt  *time.Time

	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is an order line. Price is the snapshot unit price copied from the
// product at checkout time, decoupled from the live catalog price.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Metadata    map[string]any
}

// UserInfo is the slim buyer view side effects need (receipt email,
// notification target).
type UserInfo struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Number returns the human-facing order number: the first eight characters
// of the order ID, upper-cased. Display convenience, not a stored field.
func (o *Order) Number() string {
	return NumberFromID(o.ID)
}

// NumberFromID derives an order number from a raw order identifier.
func NumberFromID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// Notifier delivers an in-app notification. Fire-and-forget from the
// caller's point of view: failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, typ string) error
}

// ReceiptStatus tags which transition a receipt email announces.
type ReceiptStatus string

const (
	ReceiptInTransit ReceiptStatus = "in_transit"
	ReceiptDelivered ReceiptStatus = "delivered"
)

// ReceiptMailer renders and sends an HTML receipt for an order.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, o *Order, email string, status ReceiptStatus) error
}

// EventPublisher emits order lifecycle events to an external bus. A nil-safe
// no-op implementation is used when eventing is disabled.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
	OrderStatusChanged(ctx context.Context, o *Order, prevStatus, prevDelivery string) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) OrderPlaced(context.Context, *Order) error { return nil }
func (NopPublisher) OrderStatusChanged(context.Context, *Order, string, string) error {
	return nil
}

// Page is a paginated order listing.
type Page struct {
	Results  []Order
	Count    int
	Page     int
	PageSize int
}

// Queries is the read side used by the HTTP layer.
type Queries interface {
	// ListForUser returns the user's orders, newest first. A zero page or
	// pageSize returns everything without pagination metadata.
	ListForUser(ctx context.Context, userID string, page, pageSize int) (*Page, error)
	// GetForUser returns one order scoped to its owner, or ErrNotFound.
	GetForUser(ctx context.Context, orderID, userID string) (*Order, error)
	// Get returns one order regardless of owner, or ErrNotFound.
	Get(ctx context.Context, orderID string) (*Order, error)
	// ListAll returns all orders paginated, newest first (admin view).
	ListAll(ctx context.Context, page, pageSize int) (*Page, error)
}
