package catalog

import (
	"context"
	"strconv"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SharedLookupTimeout bounds a coalesced lookup, which no longer follows the
// context of whichever caller started it.
const SharedLookupTimeout = 10 * time.Second

// Coalesced collapses concurrent lookups of the same product into a single
// backend call. Results are not cached so prices stay live.
type Coalesced struct {
	inner Accessor
	sfg   singleflight.Group
}

func NewCoalesced(inner Accessor) *Coalesced {
	return &Coalesced{inner: inner}
}

// GetProduct waits for the shared lookup or for its own ctx, whichever ends
// first. One caller giving up never fails the others.
func (c *Coalesced) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ch := c.sfg.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), SharedLookupTimeout)
		defer cancel()
		return c.inner.GetProduct(shared, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Product), nil
	}
}

func (c *Coalesced) ListProducts(ctx context.Context, f Filters) (*Page, error) {
	return c.inner.ListProducts(ctx, f)
}
