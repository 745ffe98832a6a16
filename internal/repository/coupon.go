package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value, maximum_discount,
		minimum_order_amount, usage_limit, usage_limit_per_user, usage_count,
		valid_from, valid_until, is_active
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	countCouponUsagesSQL     = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1`
	countCouponUserUsagesSQL = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	insertCouponUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, user_id, order_id)
		VALUES ($1, $2, $3, $4)`

	// The conditional increment is the hard concurrency guarantee: the WHERE
	// clause refuses the increment once the limit is exhausted, and reaching
	// the limit deactivates the coupon in the same statement unless it has
	// already expired.
	incrementCouponUsageSQL = `UPDATE coupons
		SET usage_count = usage_count + 1,
		    is_active = CASE
		        WHEN usage_limit > 0 AND usage_count + 1 >= usage_limit
		             AND (valid_until IS NULL OR valid_until >= $2)
		        THEN FALSE
		        ELSE is_active
		    END
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)
		RETURNING usage_count`

	setCouponUsageCountSQL = `UPDATE coupons SET usage_count = $2 WHERE id = $1`
	deactivateCouponSQL    = `UPDATE coupons SET is_active = FALSE WHERE id = $1`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository on the given DB.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindByCode looks a coupon up by its code, case-insensitive. Returns
// coupon.ErrNotFound when no coupon carries the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "finding coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding coupon %q", code)
	}
	return &c, nil
}

// CountUsages returns the authoritative redemption count from the ledger.
func (r *CouponRepository) CountUsages(ctx context.Context, couponID string) (int, error) {
	var count int
	err := r.db.q(ctx).QueryRow(ctx, countCouponUsagesSQL, couponID).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "counting usages for coupon %q", couponID)
	}
	return count, nil
}

// CountUserUsages returns how many times the user redeemed the coupon.
func (r *CouponRepository) CountUserUsages(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	err := r.db.q(ctx).QueryRow(ctx, countCouponUserUsagesSQL, couponID, userID).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "counting user usages for coupon %q", couponID)
	}
	return count, nil
}

// InsertUsage appends a redemption record to the ledger.
func (r *CouponRepository) InsertUsage(ctx context.Context, u coupon.Usage) error {
	_, err := r.db.q(ctx).Exec(ctx, insertCouponUsageSQL, u.ID, u.CouponID, u.UserID, u.OrderID)
	if err != nil {
		return errors.Wrapf(err, "inserting usage for coupon %q", u.CouponID)
	}
	return nil
}

// IncrementUsage applies the atomic conditional counter increment. A zero-row
// update means the limit was exhausted concurrently; applied is false then.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string, now time.Time) (int, bool, error) {
	var count int
	err := r.db.q(ctx).QueryRow(ctx, incrementCouponUsageSQL, couponID, now).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "incrementing usage for coupon %q", couponID)
	}
	return count, true, nil
}

// SetUsageCount overwrites the denormalized counter (lazy reconciliation).
func (r *CouponRepository) SetUsageCount(ctx context.Context, couponID string, count int) error {
	_, err := r.db.q(ctx).Exec(ctx, setCouponUsageCountSQL, couponID, count)
	if err != nil {
		return errors.Wrapf(err, "setting usage count for coupon %q", couponID)
	}
	return nil
}

// Deactivate flips the coupon inactive.
func (r *CouponRepository) Deactivate(ctx context.Context, couponID string) error {
	_, err := r.db.q(ctx).Exec(ctx, deactivateCouponSQL, couponID)
	if err != nil {
		return errors.Wrapf(err, "deactivating coupon %q", couponID)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.MaximumDiscount,
		&c.MinimumOrderAmount, &c.UsageLimit, &c.UsageLimitPerUser, &c.UsageCount,
		&c.ValidFrom, &c.ValidUntil, &c.IsActive,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
