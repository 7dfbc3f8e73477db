package pricing

import "github.com/shopspring/decimal"

// Format renders an amount with exactly two decimals for display.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// LineTotal is unit price times quantity. An unset price counts as zero so a
// missing catalog price can never poison a total.
func LineTotal(price decimal.NullDecimal, quantity int) (decimal.Decimal, bool) {
	if !price.Valid {
		return decimal.Zero, false
	}
	return price.Decimal.Mul(decimal.NewFromInt(int64(quantity))), true
}
