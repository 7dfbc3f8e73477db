// Package pricing derives order totals from a cart subtotal. Everything here
// is pure and deterministic so it can run on every read.
package pricing

import (
	"strings"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/shopspring/decimal"
)

type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	Promos                PromoTable
}

func DefaultRules() Rules {
	fee := decimal.NewFromInt(15)
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       fee,
		TaxRate:               decimal.RequireFromString("0.05"),
		Promos:                DefaultPromos(fee),
	}
}

type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	if rules.Promos == nil {
		rules.Promos = DefaultPromos(rules.FlatShippingFee)
	}
	return &Engine{rules: rules}
}

func (e *Engine) Rules() Rules {
	return e.rules
}

// ShippingCost is free only strictly above the threshold.
func (e *Engine) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(e.rules.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.rules.FlatShippingFee
}

func (e *Engine) TaxAmount(subtotal decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Mul(e.rules.TaxRate))
}

// Compute returns the full breakdown. A negative subtotal is treated as zero.
func (e *Engine) Compute(subtotal decimal.Decimal, promoCode string) domain.PricingBreakdown {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}

	b := domain.PricingBreakdown{
		Subtotal:      Round2(subtotal),
		ShippingCost:  e.ShippingCost(subtotal),
		TaxAmount:     e.TaxAmount(subtotal),
		PromoDiscount: decimal.Zero,
	}

	code := NormalizeCode(promoCode)
	if code != "" {
		b.PromoCode = code
		discount, ok := e.rules.Promos.Lookup(code)
		b.PromoValid = &ok
		if ok {
			b.PromoDiscount = discount
		}
	}

	total := subtotal.Add(b.ShippingCost).Add(b.TaxAmount).Sub(b.PromoDiscount)
	if total.IsNegative() {
		total = decimal.Zero
		b.Clamped = true
	}
	b.GrandTotal = Round2(total)
	return b
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
