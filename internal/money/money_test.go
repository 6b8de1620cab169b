package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotalsTenDollars(t *testing.T) {
	tax, total := Totals(decimal.RequireFromString("10.00"))
	assert.Equal(t, int64(88), ToCents(tax))
	assert.Equal(t, int64(1088), ToCents(total))
	assert.Equal(t, "$10.88", FormatUSD(total))
}

func TestTaxCentsRounding(t *testing.T) {
	tests := []struct {
		subtotal int64
		want     int64
	}{
		{subtotal: 0, want: 0},
		{subtotal: 1000, want: 88},  // 87.5 rounds up
		{subtotal: 1200, want: 105}, // 105.0
		{subtotal: 100, want: 9},    // 8.75
		{subtotal: 4, want: 0},      // 0.35
		{subtotal: 8, want: 1},      // 0.70
		{subtotal: 3600, want: 315}, // 315.0
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TaxCents(tt.subtotal), "subtotal %d", tt.subtotal)
	}
}

func TestCentsConversion(t *testing.T) {
	assert.Equal(t, int64(1250), ToCents(decimal.RequireFromString("12.50")))
	assert.Equal(t, int64(1), ToCents(decimal.RequireFromString("0.005")))
	assert.True(t, FromCents(1088).Equal(decimal.RequireFromString("10.88")))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.00", FormatUSD(decimal.Zero))
	assert.Equal(t, "$36.00", FormatUSD(decimal.NewFromInt(36)))
	assert.Equal(t, "-$3.50", FormatUSD(decimal.RequireFromString("-3.5")))
}
