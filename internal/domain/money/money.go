// Package money holds the pricing primitives shared by the checkout engine.
// All monetary arithmetic happens in decimal precision; float64 never touches
// an amount that ends up on an order.
package money

import (
	"github.com/shopspring/decimal"
)

// FromAny coerces a raw value into a decimal amount. Nil and unrecognized
// inputs become zero; the function never fails. It mirrors the permissive
// numeric handling at the API boundary where amounts arrive as numbers,
// strings, or not at all.
func FromAny(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	default:
		return decimal.Zero
	}
}

// LineTotal returns unitPrice * quantity. Negative quantities are treated as
// zero; quantities are counts, not adjustments.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Clamp bounds d to the inclusive range [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// FloorAtZero clamps negative amounts to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
