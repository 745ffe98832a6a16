// Package cache provides the Redis-backed coupon cache. Caching is optional;
// without a configured Redis address the ledger simply runs uncached.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/domain/coupon"
)

const couponKeyPrefix = "coupon:"

var _ coupon.Cache = (*CouponCache)(nil)

// CouponCache caches coupon lookups in Redis. All operations are best-effort:
// connectivity problems are logged and treated as cache misses.
type CouponCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCouponCache creates a CouponCache with the given entry TTL.
func NewCouponCache(client *redis.Client, ttl time.Duration) *CouponCache {
	return &CouponCache{client: client, ttl: ttl}
}

// Get returns the cached coupon for a code, if present.
func (c *CouponCache) Get(ctx context.Context, code string) (*coupon.Coupon, bool) {
	raw, err := c.client.Get(ctx, couponKeyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			zctx.From(ctx).Debug("Coupon cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var cp coupon.Coupon
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, false
	}
	return &cp, true
}

// Set stores the coupon under its code.
func (c *CouponCache) Set(ctx context.Context, code string, cp *coupon.Coupon) {
	raw, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, couponKeyPrefix+code, raw, c.ttl).Err(); err != nil {
		zctx.From(ctx).Debug("Coupon cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached entry for a code.
func (c *CouponCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, couponKeyPrefix+code).Err(); err != nil {
		zctx.From(ctx).Debug("Coupon cache invalidation failed", zap.Error(err))
	}
}
