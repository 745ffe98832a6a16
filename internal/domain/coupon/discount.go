package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the discount amount the coupon yields for the given
// subtotal. Percentage discounts are capped by MaximumDiscount when it is
// positive; the result is always clamped to [0, subtotal] so a coupon can
// never discount more than the order is worth.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaximumDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaximumDiscount)
		}
	case DiscountFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}

	return money.Clamp(amount, decimal.Zero, subtotal).Round(2)
}
