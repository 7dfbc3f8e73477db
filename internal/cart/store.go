// Package cart owns the shopping cart of one session: its line items, the
// remembered promo code and the joined view used by every screen.
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/pricing"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrItemNotInCart   = errors.New("item not in cart")
)

const maxParallelLookups = 8

type promoState struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type Store struct {
	mu      sync.Mutex
	lines   []domain.CartLineItem
	promo   promoState
	kv      storage.Store
	catalog catalog.Accessor
	pricing *pricing.Engine
	log     *logger.Logger
}

// Open restores the cart and promo code persisted in kv. State that cannot
// be read is logged and replaced by an empty cart.
func Open(ctx context.Context, kv storage.Store, cat catalog.Accessor, engine *pricing.Engine, log *logger.Logger) *Store {
	s := &Store{kv: kv, catalog: cat, pricing: engine, log: log}

	var lines []domain.CartLineItem
	if err := storage.GetJSON(ctx, kv, storage.KeyCart, &lines); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("restore cart failed", "error", err)
		}
	}
	for _, li := range lines {
		if li.Quantity < 1 {
			continue
		}
		s.lines = addLine(s.lines, li.ProductID, li.Quantity)
	}

	if err := storage.GetJSON(ctx, kv, storage.KeyPromo, &s.promo); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("restore promo failed", "error", err)
		}
	}
	return s
}

// AddItem adds quantity units of a product, summing with an existing line.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return fmt.Errorf("add item %d: %w", productID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = addLine(s.lines, productID, quantity)
	s.persistCart(ctx)
	return nil
}

// AddItemClamped is the product page control: it never adds more than the
// current stock. It returns the quantity actually added.
func (s *Store) AddItemClamped(ctx context.Context, productID int64, requested int) (int, error) {
	if requested < 1 {
		return 0, ErrInvalidQuantity
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("add item %d: %w", productID, err)
	}
	if !p.InStock() {
		return 0, ErrOutOfStock
	}
	quantity := min(requested, p.Stock)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = addLine(s.lines, productID, quantity)
	s.persistCart(ctx)
	return quantity, nil
}

// UpdateQuantity replaces a line's quantity, clamped to [1, stock]. A
// quantity of zero or less removes the line. A sold-out product cannot be
// updated and returns ErrOutOfStock. It returns the stored quantity.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		s.RemoveItem(ctx, productID)
		return 0, nil
	}
	if !s.contains(productID) {
		return 0, ErrItemNotInCart
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("update item %d: %w", productID, err)
	}
	if !p.InStock() {
		return 0, ErrOutOfStock
	}
	quantity = max(1, min(quantity, p.Stock))

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(productID)
	if i < 0 {
		return 0, ErrItemNotInCart
	}
	s.lines[i].Quantity = quantity
	s.persistCart(ctx)
	return quantity, nil
}

func (s *Store) RemoveItem(ctx context.Context, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines = slices.Delete(s.lines, i, i+1)
	s.persistCart(ctx)
}

// Clear empties the cart and forgets the promo code.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.promo = promoState{}
	s.persistCart(ctx)
	if err := s.kv.Delete(ctx, storage.KeyPromo); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("delete promo failed", "error", err)
	}
}

func (s *Store) Lines() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, li := range s.lines {
		n += li.Quantity
	}
	return n
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// View joins the current lines with live catalog data and prices them.
func (s *Store) View(ctx context.Context) (View, error) {
	lines := s.Lines()
	products, err := s.fetch(ctx, lines)
	if err != nil {
		return View{}, err
	}

	v := Join(lines, products)
	if len(v.Orphans) > 0 {
		s.log.WithContext(ctx).Warn("cart has orphaned items", "product_ids", v.Orphans)
	}
	for _, is := range v.Issues {
		s.log.WithContext(ctx).Warn("cart line issue", "product_id", is.ProductID, "kind", is.Kind)
	}

	totals := s.pricing.Compute(v.Subtotal, s.Promo())
	display := NewDisplay(totals)
	v.Totals = &totals
	v.Display = &display
	return v, nil
}

type QuantityChange struct {
	ProductID int64 `json:"product_id"`
	From      int   `json:"from"`
	To        int   `json:"to"`
}

type ReconcileResult struct {
	Removed []int64          `json:"removed"`
	Clamped []QuantityChange `json:"clamped"`
}

func (r ReconcileResult) Changed() bool {
	return len(r.Removed) > 0 || len(r.Clamped) > 0
}

// Reconcile deletes lines whose product no longer exists or is sold out and
// clamps the rest to current stock.
func (s *Store) Reconcile(ctx context.Context) (ReconcileResult, error) {
	snapshot := s.Lines()
	products, err := s.fetch(ctx, snapshot)
	if err != nil {
		return ReconcileResult{}, err
	}
	checked := make(map[int64]bool, len(snapshot))
	for _, li := range snapshot {
		checked[li.ProductID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := ReconcileResult{Removed: []int64{}, Clamped: []QuantityChange{}}
	kept := s.lines[:0]
	for _, li := range s.lines {
		// lines added while the catalog was queried are judged next time
		if !checked[li.ProductID] {
			kept = append(kept, li)
			continue
		}
		p, ok := products[li.ProductID]
		if !ok || !p.InStock() {
			res.Removed = append(res.Removed, li.ProductID)
			continue
		}
		if li.Quantity > p.Stock {
			res.Clamped = append(res.Clamped, QuantityChange{ProductID: li.ProductID, From: li.Quantity, To: p.Stock})
			li.Quantity = p.Stock
		}
		kept = append(kept, li)
	}
	s.lines = kept

	if res.Changed() {
		s.log.WithContext(ctx).Info("cart reconciled", "removed", res.Removed, "clamped", len(res.Clamped))
		s.persistCart(ctx)
	}
	return res, nil
}

// ApplyPromo remembers code and reports whether it unlocks a discount.
// Unknown codes are remembered too so the view can flag them as invalid.
func (s *Store) ApplyPromo(ctx context.Context, code string) bool {
	code = pricing.NormalizeCode(code)
	if code == "" {
		s.ClearPromo(ctx)
		return false
	}
	discount, ok := s.pricing.Rules().Promos.Lookup(code)
	if !ok {
		discount = decimal.Zero
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.promo = promoState{Code: code, Discount: discount}
	if err := storage.SetJSON(ctx, s.kv, storage.KeyPromo, s.promo); err != nil {
		s.log.Warn("persist promo failed", "error", err)
	}
	return ok
}

func (s *Store) ClearPromo(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promo = promoState{}
	if err := s.kv.Delete(ctx, storage.KeyPromo); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("delete promo failed", "error", err)
	}
}

func (s *Store) Promo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo.Code
}

// fetch resolves every distinct product of lines in parallel. Missing
// products are simply absent from the result.
func (s *Store) fetch(ctx context.Context, lines []domain.CartLineItem) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(lines))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for _, li := range lines {
		id := li.ProductID
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, id)
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load product %d: %w", id, err)
			}
			mu.Lock()
			products[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

func (s *Store) indexOf(productID int64) int {
	return slices.IndexFunc(s.lines, func(li domain.CartLineItem) bool {
		return li.ProductID == productID
	})
}

// persistCart must be called with mu held. Failures are logged only; the
// in-memory mutation stands.
func (s *Store) persistCart(ctx context.Context) {
	lines := s.lines
	if lines == nil {
		lines = []domain.CartLineItem{}
	}
	if err := storage.SetJSON(ctx, s.kv, storage.KeyCart, lines); err != nil {
		s.log.WithContext(ctx).Warn("persist cart failed", "error", err)
	}
}

func addLine(lines []domain.CartLineItem, productID int64, quantity int) []domain.CartLineItem {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += quantity
			return lines
		}
	}
	return append(lines, domain.CartLineItem{ProductID: productID, Quantity: quantity})
}
