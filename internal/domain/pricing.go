package domain

import "github.com/shopspring/decimal"

// PricingBreakdown is derived on every read and never persisted.
type PricingBreakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	PromoCode     string          `json:"promo_code,omitempty"`
	PromoValid    *bool           `json:"promo_valid"` // nil until a code is attempted
	PromoDiscount decimal.Decimal `json:"promo_discount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Clamped       bool            `json:"clamped,omitempty"`
}
