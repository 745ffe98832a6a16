package coupon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStore is an in-memory Store whose IncrementUsage honours the same
// conditional-increment contract as the SQL implementation: the increment is
// refused once the global limit is exhausted, atomically.
type memStore struct {
	mu      sync.Mutex
	coupons map[string]*Coupon // by code
	usages  []Usage
}

func newMemStore(coupons ...*Coupon) *memStore {
	s := &memStore{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		s.coupons[c.Code] = c
	}
	return s
}

func (s *memStore) byID(id string) *Coupon {
	for _, c := range s.coupons {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *memStore) FindByCode(_ context.Context, code string) (*Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CountUsages(_ context.Context, couponID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountUserUsages(_ context.Context, couponID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.usages {
		if u.CouponID == couponID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertUsage(_ context.Context, u Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usages = append(s.usages, u)
	return nil
}

func (s *memStore) IncrementUsage(_ context.Context, couponID string, now time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(couponID)
	if c == nil {
		return 0, false, ErrNotFound
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return c.UsageCount, false, nil
	}
	c.UsageCount++
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		expired := c.ValidUntil != nil && c.ValidUntil.Before(now)
		if !expired {
			c.IsActive = false
		}
	}
	return c.UsageCount, true, nil
}

func (s *memStore) SetUsageCount(_ context.Context, couponID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.byID(couponID); c != nil {
		c.UsageCount = count
	}
	return nil
}

func (s *memStore) Deactivate(_ context.Context, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.byID(couponID); c != nil {
		c.IsActive = false
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLedger_ValidateAndPrice(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	base := func() *Coupon {
		return &Coupon{
			ID:            "c1",
			Code:          "SAVE10",
			DiscountType:  DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			IsActive:      true,
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Coupon)
		usages   []Usage
		subtotal decimal.Decimal
		wantErr  error
		wantAmt  string
	}{
		{
			name:     "valid percentage coupon",
			subtotal: decimal.NewFromInt(200),
			wantAmt:  "20",
		},
		{
			name:     "inactive",
			mutate:   func(c *Coupon) { c.IsActive = false },
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrInactive,
		},
		{
			name:     "expired",
			mutate:   func(c *Coupon) { c.ValidUntil = &past },
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrExpired,
		},
		{
			name:     "not yet active",
			mutate:   func(c *Coupon) { c.ValidFrom = &future },
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrNotYetActive,
		},
		{
			name:   "global usage limit reached",
			mutate: func(c *Coupon) { c.UsageLimit = 2 },
			usages: []Usage{
				{ID: "u1", CouponID: "c1", UserID: "a", OrderID: "o1"},
				{ID: "u2", CouponID: "c1", UserID: "b", OrderID: "o2"},
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrUsageLimitReached,
		},
		{
			name:   "per-user limit reached",
			mutate: func(c *Coupon) { c.UsageLimitPerUser = 1 },
			usages: []Usage{
				{ID: "u1", CouponID: "c1", UserID: "buyer", OrderID: "o1"},
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrPerUserLimitReached,
		},
		{
			name:     "minimum order not met",
			mutate:   func(c *Coupon) { c.MinimumOrderAmount = decimal.NewFromInt(500) },
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrMinimumOrderNotMet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			store := newMemStore(c)
			store.usages = tt.usages

			ledger := NewLedger(store, WithClock(fixedClock(now)))
			got, amount, err := ledger.ValidateAndPrice(context.Background(), "SAVE10", "buyer", tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, decimal.RequireFromString(tt.wantAmt).Equal(amount), "want %s got %s", tt.wantAmt, amount)
		})
	}
}

func TestLedger_ValidateAndPrice_UnknownCode(t *testing.T) {
	ledger := NewLedger(newMemStore())
	_, _, err := ledger.ValidateAndPrice(context.Background(), "NOPE", "u", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_Redeem_DeactivatesAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Coupon{
		ID: "c1", Code: "LAST3", DiscountType: DiscountFixed,
		DiscountValue: decimal.NewFromInt(5), UsageLimit: 3, IsActive: true,
	}
	store := newMemStore(c)
	ledger := NewLedger(store, WithClock(fixedClock(now)))

	for i := range 3 {
		cc, _, err := ledger.ValidateAndPrice(context.Background(), "LAST3", "u", decimal.NewFromInt(50))
		require.NoError(t, err, "redemption %d", i+1)
		require.NoError(t, ledger.Redeem(context.Background(), cc, "u", "order"))
	}

	assert.False(t, store.coupons["LAST3"].IsActive, "coupon must deactivate when the limit is reached")

	_, _, err := ledger.ValidateAndPrice(context.Background(), "LAST3", "u", decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrInactive)
}

func TestLedger_Redeem_ConcurrentOverLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const limit = 5

	c := &Coupon{
		ID: "c1", Code: "RACE5", DiscountType: DiscountFixed,
		DiscountValue: decimal.NewFromInt(5), UsageLimit: limit, IsActive: true,
	}
	store := newMemStore(c)
	ledger := NewLedger(store, WithClock(fixedClock(now)))

	var (
		mu        sync.Mutex
		succeeded int
	)
	g := new(errgroup.Group)
	for range limit + 5 {
		g.Go(func() error {
			// Every attempt re-reads the coupon, as a real checkout would.
			cc, err := store.FindByCode(context.Background(), "RACE5")
			if err != nil {
				return nil
			}
			if err := ledger.Redeem(context.Background(), cc, "u", "order"); err != nil {
				return nil
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, limit, succeeded, "exactly usageLimit redemptions may succeed")
	assert.Equal(t, limit, store.coupons["RACE5"].UsageCount)
	assert.False(t, store.coupons["RACE5"].IsActive)
}

func TestLedger_Check_LazyReconciliation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("undercounted cache is corrected", func(t *testing.T) {
		c := &Coupon{
			ID: "c1", Code: "FIX", DiscountType: DiscountFixed,
			DiscountValue: decimal.NewFromInt(5), UsageLimit: 10,
			UsageCount: 1, IsActive: true,
		}
		store := newMemStore(c)
		// Three authoritative usages, but the denormalized counter says one.
		store.usages = []Usage{
			{ID: "u1", CouponID: "c1"}, {ID: "u2", CouponID: "c1"}, {ID: "u3", CouponID: "c1"},
		}

		ledger := NewLedger(store, WithClock(fixedClock(now)))
		res, err := ledger.Check(context.Background(), "FIX")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 3, store.coupons["FIX"].UsageCount)
	})

	t.Run("exhausted coupon is deactivated", func(t *testing.T) {
		c := &Coupon{
			ID: "c1", Code: "DONE", DiscountType: DiscountFixed,
			DiscountValue: decimal.NewFromInt(5), UsageLimit: 2,
			UsageCount: 0, IsActive: true,
		}
		store := newMemStore(c)
		store.usages = []Usage{{ID: "u1", CouponID: "c1"}, {ID: "u2", CouponID: "c1"}}

		ledger := NewLedger(store, WithClock(fixedClock(now)))
		res, err := ledger.Check(context.Background(), "DONE")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "Coupon usage limit reached", res.Message)
		assert.False(t, store.coupons["DONE"].IsActive)
	})

	t.Run("unknown code is invalid, not an error", func(t *testing.T) {
		ledger := NewLedger(newMemStore(), WithClock(fixedClock(now)))
		res, err := ledger.Check(context.Background(), "NOPE")
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})
}
