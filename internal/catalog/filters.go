package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortRating     SortKey = "rating"
	SortPopularity SortKey = "popularity"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortPopularity:
		return true
	}
	return false
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Filters struct {
	Search     string
	Categories []string
	Brands     []string
	PriceMin   decimal.NullDecimal
	PriceMax   decimal.NullDecimal
	MinRating  float64
	Sort       SortKey
	Limit      int
	Offset     int
}

// Query encodes the filters the way the catalog backend expects them.
// Category and brand sets are comma separated.
func (f Filters) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if len(f.Categories) > 0 {
		q.Set("category", strings.Join(f.Categories, ","))
	}
	if len(f.Brands) > 0 {
		q.Set("brand", strings.Join(f.Brands, ","))
	}
	if f.PriceMin.Valid {
		q.Set("price_min", f.PriceMin.Decimal.String())
	}
	if f.PriceMax.Valid {
		q.Set("price_max", f.PriceMax.Decimal.String())
	}
	if f.MinRating > 0 {
		q.Set("rating", strconv.FormatFloat(f.MinRating, 'f', -1, 64))
	}
	if f.Sort != "" {
		q.Set("sort_by", string(f.Sort))
	}
	q.Set("limit", strconv.Itoa(f.normalizedLimit()))
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

func (f Filters) normalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	}
	return f.Limit
}

// Normalize fills defaults and caps the page size.
func (f Filters) Normalize() Filters {
	f.Limit = f.normalizedLimit()
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	return f
}

// ParseFilters is the inverse of Query.
func ParseFilters(q url.Values) (Filters, error) {
	f := Filters{
		Search:     strings.TrimSpace(q.Get("search")),
		Categories: splitList(q.Get("category")),
		Brands:     splitList(q.Get("brand")),
	}

	var err error
	if f.PriceMin, err = parseDecimal(q, "price_min"); err != nil {
		return Filters{}, err
	}
	if f.PriceMax, err = parseDecimal(q, "price_max"); err != nil {
		return Filters{}, err
	}
	if f.PriceMin.Valid && f.PriceMax.Valid && f.PriceMin.Decimal.GreaterThan(f.PriceMax.Decimal) {
		return Filters{}, fmt.Errorf("%w: price_min greater than price_max", ErrInvalidFilter)
	}

	if v := q.Get("rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 5 {
			return Filters{}, fmt.Errorf("%w: rating %q", ErrInvalidFilter, v)
		}
		f.MinRating = r
	}

	if v := q.Get("sort_by"); v != "" {
		f.Sort = SortKey(v)
		if !f.Sort.Valid() {
			return Filters{}, fmt.Errorf("%w: sort_by %q", ErrInvalidFilter, v)
		}
	}

	if f.Limit, err = parseInt(q, "limit"); err != nil {
		return Filters{}, err
	}
	if f.Offset, err = parseInt(q, "offset"); err != nil {
		return Filters{}, err
	}

	return f.Normalize(), nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDecimal(q url.Values, key string) (decimal.NullDecimal, error) {
	v := q.Get(key)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s %q", ErrInvalidFilter, key, v)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidFilter, key, v)
	}
	return n, nil
}
