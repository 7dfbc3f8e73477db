package pricing

import "github.com/shopspring/decimal"

// PromoTable maps normalized (upper-case) codes to a fixed discount amount.
type PromoTable map[string]decimal.Decimal

// DefaultPromos unlocks ROBO20 (20.00 off) and FREESHIP (worth one flat
// shipping fee).
func DefaultPromos(flatShippingFee decimal.Decimal) PromoTable {
	return PromoTable{
		"ROBO20":   decimal.NewFromInt(20),
		"FREESHIP": flatShippingFee,
	}
}

func (t PromoTable) Lookup(code string) (decimal.Decimal, bool) {
	d, ok := t[NormalizeCode(code)]
	return d, ok
}
