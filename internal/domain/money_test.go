package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(1_230_000) // 12,300.00 INR
	assert.Equal(t, "12300", m.ToDecimal().String())
}

func TestFromDecimal(t *testing.T) {
	d := decimal.NewFromFloat(12300.00)
	assert.Equal(t, int64(1_230_000), FromDecimal(d))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "12300.00", NewMoney(1_230_000).String())
	assert.Equal(t, "0.05", NewMoney(5).String())
	assert.Equal(t, "-1.50", NewMoney(-150).String())
}

func TestParsePaise(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12300.00", want: 1_230_000},
		{in: "12,300.00", want: 1_230_000},
		{in: " 99.5 ", want: 9_950},
		{in: "0", want: 0},
		{in: "12300.005", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParsePaise(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
