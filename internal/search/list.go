package search

import (
	"context"
	"sync"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
)

// Result is what a listing request produced. Stale is set when a newer
// request was issued while this one was in flight; its page was not applied.
type Result struct {
	Page    *catalog.Page
	Filters catalog.Filters
	Seq     uint64
	Stale   bool
}

// ProductList is the visible product list of one session. Responses are
// applied last-write-wins: a response for anything but the newest request
// is discarded.
type ProductList struct {
	catalog  catalog.Accessor
	seq      Sequencer
	debounce *Debouncer

	mu      sync.Mutex
	current Result
}

func NewProductList(cat catalog.Accessor, delay time.Duration) *ProductList {
	return &ProductList{
		catalog:  cat,
		debounce: NewDebouncer(delay),
		current:  Result{Page: catalog.EmptyPage()},
	}
}

// Fetch issues a request right away.
func (l *ProductList) Fetch(ctx context.Context, f catalog.Filters) (Result, error) {
	seq := l.seq.Next()
	page, err := l.catalog.ListProducts(ctx, f)
	if err != nil {
		return Result{}, err
	}
	res := Result{Page: page, Filters: f, Seq: seq}
	res.Stale = !l.apply(res)
	return res, nil
}

// Schedule debounces a request. done is called with the result once the
// request completes, unless a later Schedule or Fetch superseded it.
func (l *ProductList) Schedule(f catalog.Filters, done func(Result, error)) {
	l.debounce.Trigger(func() {
		res, err := l.Fetch(context.Background(), f)
		if err == nil && res.Stale {
			return
		}
		if done != nil {
			done(res, err)
		}
	})
}

func (l *ProductList) Cancel() {
	l.debounce.Cancel()
}

func (l *ProductList) Current() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *ProductList) apply(res Result) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seq.IsLatest(res.Seq) || res.Seq < l.current.Seq {
		return false
	}
	l.current = res
	return true
}
