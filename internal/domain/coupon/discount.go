package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the discount amount the coupon grants on the given
// subtotal. It is deterministic and has no side effects.
//
// PERCENT: subtotal * value / 100, clamped to MaxDiscount when set.
// FIXED: the coupon value as-is; it may exceed the subtotal, and clamping it
// to the order total is deliberately left to the caller.
func Calculate(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch c.Type {
	case DiscountPercent:
		amount := subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
			amount = c.MaxDiscount.Decimal
		}
		return amount.Round(2), nil

	case DiscountFixed:
		return c.Value, nil

	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.Type)
	}
}
