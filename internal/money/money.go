package money

import "github.com/shopspring/decimal"

// TaxRate is the fixed sales tax applied to every order.
var TaxRate = decimal.RequireFromString("0.0875")

var hundred = decimal.NewFromInt(100)

// ToCents converts a currency amount to whole cents, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// TaxCents returns round(subtotalCents * TaxRate) with half-up rounding.
func TaxCents(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(TaxRate).Round(0).IntPart()
}

// Totals computes tax and total for a subtotal, both in currency units.
func Totals(subtotal decimal.Decimal) (tax, total decimal.Decimal) {
	sub := ToCents(subtotal)
	taxCents := TaxCents(sub)
	return FromCents(taxCents), FromCents(sub + taxCents)
}

// FormatUSD renders "$10.88" (or "-$3.50").
func FormatUSD(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + amount.Abs().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}
