package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cache is an optional read-through cache in front of the standalone
// validation path. Implementations are best-effort: a miss or a failed store
// must never surface as an error.
type Cache interface {
	Get(ctx context.Context, code string) (*Coupon, bool)
	Set(ctx context.Context, code string, c *Coupon)
	Invalidate(ctx context.Context, code string)
}

// Ledger validates coupons and records redemptions.
//
// ValidateAndPrice and Redeem are meant to run inside the checkout
// transaction; Check serves the public "validate this code" endpoint and
// performs lazy reconciliation of the denormalized usage counter.
type Ledger struct {
	store Store
	cache Cache
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCache attaches a read cache to the standalone validation path.
func WithCache(c Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger backed by the given store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidateAndPrice checks every redemption precondition for the given user
// and subtotal and returns the coupon together with the discount it yields.
// The caller is expected to invoke it inside the same transaction that will
// later Redeem; the usage-limit check here is advisory, the hard guarantee
// comes from the conditional increment in Redeem.
func (l *Ledger) ValidateAndPrice(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Coupon, decimal.Decimal, error) {
	c, err := l.store.FindByCode(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}

	now := l.now()
	if !c.IsActive {
		return nil, decimal.Zero, ErrInactive
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return nil, decimal.Zero, ErrExpired
	}
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return nil, decimal.Zero, ErrNotYetActive
	}

	if c.UsageLimit > 0 {
		count, err := l.store.CountUsages(ctx, c.ID)
		if err != nil {
			return nil, decimal.Zero, errors.Wrap(err, "count usages")
		}
		if count >= c.UsageLimit {
			return nil, decimal.Zero, ErrUsageLimitReached
		}
	}

	if c.UsageLimitPerUser > 0 {
		count, err := l.store.CountUserUsages(ctx, c.ID, userID)
		if err != nil {
			return nil, decimal.Zero, errors.Wrap(err, "count user usages")
		}
		if count >= c.UsageLimitPerUser {
			return nil, decimal.Zero, ErrPerUserLimitReached
		}
	}

	if c.MinimumOrderAmount.IsPositive() && subtotal.LessThan(c.MinimumOrderAmount) {
		return nil, decimal.Zero, ErrMinimumOrderNotMet
	}

	return c, c.Discount(subtotal), nil
}

// Redeem records a redemption: it inserts the usage row and applies the
// atomic conditional increment to the coupon counter. Both writes must share
// the checkout transaction; two concurrent checkouts racing for the last
// allowed use are serialized by the increment, and the loser gets
// ErrUsageLimitReached, rolling its whole checkout back.
func (l *Ledger) Redeem(ctx context.Context, c *Coupon, userID, orderID string) error {
	err := l.store.InsertUsage(ctx, Usage{
		ID:       uuid.New().String(),
		CouponID: c.ID,
		UserID:   userID,
		OrderID:  orderID,
	})
	if err != nil {
		return errors.Wrap(err, "insert usage")
	}

	_, applied, err := l.store.IncrementUsage(ctx, c.ID, l.now())
	if err != nil {
		return errors.Wrap(err, "increment usage")
	}
	if !applied {
		return ErrUsageLimitReached
	}

	if l.cache != nil {
		l.cache.Invalidate(ctx, c.Code)
	}
	return nil
}

// CheckResult is the outcome of a standalone coupon validation.
type CheckResult struct {
	Valid   bool
	Message string
	Coupon  *Coupon
}

// Check validates a code outside of checkout. Instead of failing it reports
// invalid states as messages, and it lazily reconciles the denormalized
// usage counter against the authoritative ledger: an undercounting cache is
// corrected upward, and a coupon whose limit is exhausted is deactivated.
func (l *Ledger) Check(ctx context.Context, code string) (CheckResult, error) {
	var c *Coupon
	if l.cache != nil {
		if cached, ok := l.cache.Get(ctx, code); ok {
			c = cached
		}
	}
	if c == nil {
		found, err := l.store.FindByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return CheckResult{Message: "Invalid or expired coupon"}, nil
		}
		if err != nil {
			return CheckResult{}, err
		}
		c = found
	}

	now := l.now()
	if !c.IsActive {
		return CheckResult{Message: "Invalid or expired coupon"}, nil
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return CheckResult{Message: "Coupon expired"}, nil
	}
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return CheckResult{Message: "Coupon not yet active"}, nil
	}

	if c.UsageLimit > 0 {
		count, err := l.store.CountUsages(ctx, c.ID)
		if err != nil {
			return CheckResult{}, errors.Wrap(err, "count usages")
		}

		if count > c.UsageCount {
			if err := l.store.SetUsageCount(ctx, c.ID, count); err != nil {
				return CheckResult{}, errors.Wrap(err, "reconcile usage count")
			}
			c.UsageCount = count
			if l.cache != nil {
				l.cache.Invalidate(ctx, code)
			}
		}

		if count >= c.UsageLimit {
			expired := c.ValidUntil != nil && c.ValidUntil.Before(now)
			if !expired && c.IsActive {
				if err := l.store.Deactivate(ctx, c.ID); err != nil {
					return CheckResult{}, errors.Wrap(err, "deactivate coupon")
				}
				if l.cache != nil {
					l.cache.Invalidate(ctx, code)
				}
			}
			return CheckResult{Message: "Coupon usage limit reached"}, nil
		}
	}

	if l.cache != nil {
		l.cache.Set(ctx, code, c)
	}
	return CheckResult{Valid: true, Coupon: c}, nil
}
