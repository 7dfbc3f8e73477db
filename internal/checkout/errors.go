package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	IllegalTransitionError = errors.New("illegal transition of checkout step")
	ErrStockExceeded       = errors.New("quantity exceeds available stock")
	ErrPriceUnavailable    = errors.New("price unavailable for cart item")
)

func illegalTransition(from, to Step) error {
	return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, from, to)
}

// ValidationError blocks a step transition. Fields maps the form field name
// to a message meant for the customer.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}
