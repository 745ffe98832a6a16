// Package coupon implements the coupon ledger: validation of a code against
// its time window, usage caps, and minimum-order rules, plus the atomic
// redemption bookkeeping performed inside the checkout transaction.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal, optionally
	// capped by MaximumDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a flat monetary discount.
	DiscountFixed DiscountType = "fixed"
)

// Validation failure modes, ordered roughly by how the checks run.
var (
	ErrNotFound            = errors.New("coupon not found")
	ErrInactive            = errors.New("coupon is not active")
	ErrExpired             = errors.New("coupon expired")
	ErrNotYetActive        = errors.New("coupon not yet active")
	ErrUsageLimitReached   = errors.New("coupon usage limit reached")
	ErrPerUserLimitReached = errors.New("coupon usage limit reached for user")
	ErrMinimumOrderNotMet  = errors.New("order does not meet coupon minimum amount")
)

// Coupon is a global discount rule identified by a unique code.
//
// UsageCount is a denormalized cache of the authoritative count over the
// usage ledger (coupon_usages). It is mutated only by the atomic increment
// during redemption and by the lazy reconciliation on standalone validation.
type Coupon struct {
	ID                 string
	Code               string
	DiscountType       DiscountType
	DiscountValue      decimal.Decimal
	MaximumDiscount    decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	UsageLimit         int
	UsageLimitPerUser  int
	UsageCount         int
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	IsActive           bool
}

// Usage is an immutable redemption record tying a coupon to the order and
// user that redeemed it.
type Usage struct {
	ID       string
	CouponID string
	UserID   string
	OrderID  string
}

// Store provides persistence for coupons and their usage ledger. When called
// inside a transactional context every operation joins that transaction.
type Store interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// CountUsages returns the authoritative redemption count for a coupon.
	CountUsages(ctx context.Context, couponID string) (int, error)
	// CountUserUsages returns how many times the given user redeemed the coupon.
	CountUserUsages(ctx context.Context, couponID, userID string) (int, error)
	InsertUsage(ctx context.Context, u Usage) error

	// IncrementUsage atomically increments usage_count, refusing the
	// increment when the global limit is already exhausted. When the
	// increment reaches the limit (and the coupon has not expired) the
	// coupon is deactivated in the same statement. Returns the count after
	// the increment and whether the increment was applied.
	IncrementUsage(ctx context.Context, couponID string, now time.Time) (count int, applied bool, err error)

	// SetUsageCount overwrites the denormalized counter (lazy reconciliation).
	SetUsageCount(ctx context.Context, couponID string, count int) error
	Deactivate(ctx context.Context, couponID string) error
}
