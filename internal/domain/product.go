package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog record as served by the catalog backend. Price and
// Stock always come from the product's best vendor offering.
type Product struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Brand       string              `json:"brand"`
	Description string              `json:"description,omitempty"`
	Categories  []string            `json:"categories"`
	Price       decimal.NullDecimal `json:"price"`
	Stock       int                 `json:"stock"`
	Vendor      string              `json:"vendor,omitempty"`
	Images      []string            `json:"images"`
	Attributes  map[string]string   `json:"attributes,omitempty"`
	Rating      Rating              `json:"rating"`
	Reviews     []Review            `json:"reviews,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Review struct {
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// InStock reports whether at least one unit can be sold.
func (p *Product) InStock() bool {
	return p.Stock > 0
}
