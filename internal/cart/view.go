package cart

import (
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/pricing"
	"github.com/shopspring/decimal"
)

type IssueKind string

const (
	IssuePriceUnavailable IssueKind = "price_unavailable"
	IssueExceedsStock     IssueKind = "exceeds_stock"
)

// Issue is a data-consistency warning attached to a view. Never fatal.
type Issue struct {
	ProductID int64     `json:"product_id"`
	Kind      IssueKind `json:"kind"`
	Message   string    `json:"message"`
}

// Line is a cart line joined with the live catalog record.
type Line struct {
	ProductID int64               `json:"product_id"`
	Name      string              `json:"name"`
	Brand     string              `json:"brand,omitempty"`
	Image     string              `json:"image,omitempty"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Stock     int                 `json:"stock"`
	Quantity  int                 `json:"quantity"`
	LineTotal decimal.Decimal     `json:"line_total"`
}

type View struct {
	Items    []Line                   `json:"items"`
	Count    int                      `json:"count"`
	Subtotal decimal.Decimal          `json:"subtotal"`
	Orphans  []int64                  `json:"orphans,omitempty"`
	Issues   []Issue                  `json:"issues,omitempty"`
	Totals   *domain.PricingBreakdown `json:"totals,omitempty"`
	Display  *Display                 `json:"display,omitempty"`
}

// Display holds the totals as two-decimal strings, ready to render.
type Display struct {
	Subtotal      string `json:"subtotal"`
	ShippingCost  string `json:"shipping_cost"`
	TaxAmount     string `json:"tax_amount"`
	PromoDiscount string `json:"promo_discount"`
	GrandTotal    string `json:"grand_total"`
}

func NewDisplay(b domain.PricingBreakdown) Display {
	return Display{
		Subtotal:      pricing.Format(b.Subtotal),
		ShippingCost:  pricing.Format(b.ShippingCost),
		TaxAmount:     pricing.Format(b.TaxAmount),
		PromoDiscount: pricing.Format(b.PromoDiscount),
		GrandTotal:    pricing.Format(b.GrandTotal),
	}
}

// Join derives the cart view from raw lines and a product snapshot. Lines
// whose product is missing from the snapshot are reported as orphans and
// left out of the count and subtotal.
func Join(lines []domain.CartLineItem, products map[int64]*domain.Product) View {
	v := View{Items: make([]Line, 0, len(lines)), Subtotal: decimal.Zero}
	for _, li := range lines {
		p, ok := products[li.ProductID]
		if !ok || p == nil {
			v.Orphans = append(v.Orphans, li.ProductID)
			continue
		}

		total, priced := pricing.LineTotal(p.Price, li.Quantity)
		if !priced {
			v.Issues = append(v.Issues, Issue{
				ProductID: li.ProductID,
				Kind:      IssuePriceUnavailable,
				Message:   "price unavailable, counted as 0.00",
			})
		}
		if li.Quantity > p.Stock {
			v.Issues = append(v.Issues, Issue{
				ProductID: li.ProductID,
				Kind:      IssueExceedsStock,
				Message:   "quantity exceeds available stock",
			})
		}

		line := Line{
			ProductID: li.ProductID,
			Name:      p.Name,
			Brand:     p.Brand,
			UnitPrice: p.Price,
			Stock:     p.Stock,
			Quantity:  li.Quantity,
			LineTotal: total,
		}
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		v.Items = append(v.Items, line)
		v.Count += li.Quantity
		v.Subtotal = v.Subtotal.Add(total)
	}
	return v
}

func (v View) IsEmpty() bool {
	return len(v.Items) == 0
}
