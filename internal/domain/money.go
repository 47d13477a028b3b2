package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in INR.
// Amount is stored as BIGINT paise (10^-2) to avoid floating point errors.
type Money struct {
	Paise int64
}

// NewMoney creates a Money from paise.
func NewMoney(paise int64) Money {
	return Money{Paise: paise}
}

// ToDecimal converts the int64 paise to a shopspring/decimal.Decimal in rupees.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Paise).Div(decimal.NewFromInt(100))
}

// FromDecimal converts a rupee decimal to int64 paise.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

// ParsePaise parses an amount string as reported by a source feed
// ("12300.00", "12,300.00" or "1230000" paise-style is not accepted) into
// paise. Fractions beyond two places are a malformed amount.
func ParsePaise(s string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("malformed amount %q: more than two decimal places", s)
	}
	return FromDecimal(d), nil
}

// String renders the amount as rupees with two decimal places.
func (m Money) String() string {
	return m.ToDecimal().StringFixed(2)
}
