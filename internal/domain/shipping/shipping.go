// Package shipping resolves a delivery fee from a shipping zone, a delivery
// method, and the order total.
package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Delivery method types.
const (
	MethodDelivery = "DELIVERY"
	MethodPickup   = "PICKUP"
)

// ErrZoneNotFound is returned when an explicitly requested zone does not
// exist or is inactive. Auto-matching never returns it; a failed auto-match
// falls back to the method's flat price.
var ErrZoneNotFound = errors.New("shipping zone not found")

// Address carries the location fields shipping resolution needs. It belongs
// to a user; orders reference it by ID.
type Address struct {
	ID      string
	UserID  string
	Street  string
	City    string
	State   string
	Country string
}

// Zone is a (state, optional city) shipping region. An empty City means the
// zone covers the whole state.
type Zone struct {
	ID       string
	Name     string
	State    string
	City     string
	IsActive bool
}

// DeliveryMethod is a way of getting an order to the buyer, with a flat
// fallback price used when no zone-specific price applies.
type DeliveryMethod struct {
	ID       string
	Name     string
	Type     string
	Price    decimal.Decimal
	IsActive bool
}

// Price is the zone x method price row. FreeOver, when positive, is the
// order-total threshold above which shipping is free.
type Price struct {
	ID               string
	ZoneID           string
	DeliveryMethodID string
	Price            decimal.Decimal
	FreeOver         decimal.Decimal
}

// Store provides lookups for shipping resolution. Implementations return
// active rows only; inactive zones, methods, and prices are invisible here.
// A lookup with no matching row returns (nil, nil); resolution treats
// absence as a fallback condition, not a failure.
type Store interface {
	MethodByID(ctx context.Context, id string) (*DeliveryMethod, error)
	FirstMethodOfType(ctx context.Context, methodType string) (*DeliveryMethod, error)
	ZoneByID(ctx context.Context, id string) (*Zone, error)
	// ZoneByCityState matches a zone on (city, state), case-insensitive.
	ZoneByCityState(ctx context.Context, city, state string) (*Zone, error)
	// ZoneByState matches a state-wide zone (empty city), case-insensitive.
	ZoneByState(ctx context.Context, state string) (*Zone, error)
	PriceFor(ctx context.Context, zoneID, methodID string) (*Price, error)
}
