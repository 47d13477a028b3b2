package domain

import "github.com/shopspring/decimal"

// Tolerance is the configurable amount-comparison policy for the relaxed
// match tier. Both bounds default to zero (exact comparison). When both are
// set, a delta passes if it is within either bound.
type Tolerance struct {
	AbsolutePaise int64
	Percent       decimal.Decimal
}

// ZeroTolerance compares amounts exactly at minor-unit precision.
var ZeroTolerance = Tolerance{}

// Within reports whether the delta between two paise amounts falls inside
// the policy. Percentage is evaluated against the larger of the two amounts.
func (t Tolerance) Within(a, b int64) bool {
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return true
	}
	if t.AbsolutePaise > 0 && delta <= t.AbsolutePaise {
		return true
	}
	if t.Percent.IsPositive() {
		base := a
		if b > base {
			base = b
		}
		if base == 0 {
			return false
		}
		pct := decimal.NewFromInt(delta).
			Div(decimal.NewFromInt(base)).
			Mul(decimal.NewFromInt(100))
		if pct.LessThanOrEqual(t.Percent) {
			return true
		}
	}
	return false
}
