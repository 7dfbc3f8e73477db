// Package catalog is the read-only view of the product catalog used by the
// cart and the product screens.
package catalog

import (
	"context"
	"errors"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUnavailable     = errors.New("catalog unavailable")
	ErrInvalidFilter   = errors.New("invalid filter")
)

type Accessor interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, f Filters) (*Page, error)
}

// Page is one slice of a listing. Degraded is set when the backend could not
// be reached and the empty page is a fallback rather than a real result.
type Page struct {
	Items    []*domain.Product `json:"products"`
	HasMore  bool              `json:"hasMore"`
	Total    int               `json:"total"`
	Degraded bool              `json:"degraded,omitempty"`
}

func EmptyPage() *Page {
	return &Page{Items: []*domain.Product{}}
}
