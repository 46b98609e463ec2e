// Package money holds integer-Rial amount helpers. Amounts are stored as
// whole Rials in int64; fractional arithmetic (discount percentages) goes
// through decimal to avoid float drift.
package money

import "github.com/shopspring/decimal"

// EpsilonRials is the tolerance when comparing a stored order total with
// the amount confirmed by the gateway.
const EpsilonRials int64 = 1

var hundred = decimal.NewFromInt(100)

// Same reports whether two amounts agree within EpsilonRials.
func Same(a, b int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= EpsilonRials
}

// Discounted applies a percentage discount to an amount, rounding to the
// nearest whole Rial. Percentages outside [0,100] are clamped.
func Discounted(amount int64, percent decimal.Decimal) int64 {
	if percent.LessThanOrEqual(decimal.Zero) {
		return amount
	}
	if percent.GreaterThanOrEqual(hundred) {
		return 0
	}
	factor := hundred.Sub(percent).Div(hundred)
	return decimal.NewFromInt(amount).Mul(factor).Round(0).IntPart()
}
