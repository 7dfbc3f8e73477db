// Package checkout drives the multi-step checkout of one session: shipping,
// payment, review and confirmation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/cart"
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
)

const DefaultCurrency = "USD"

// Cart is the part of the cart store checkout depends on.
type Cart interface {
	View(ctx context.Context) (cart.View, error)
	IsEmpty() bool
	Clear(ctx context.Context)
}

// Submitter hands a placed order to whoever takes payment.
type Submitter interface {
	Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error)
}

// State is the serializable checkout state returned to callers.
type State struct {
	Step         Step                  `json:"step"`
	Shipping     domain.ShippingInfo   `json:"shipping_info"`
	Payment      domain.PaymentSummary `json:"payment"`
	Order        *domain.Order         `json:"order,omitempty"`
	Confirmation *domain.Confirmation  `json:"confirmation,omitempty"`
}

// persisted is what survives between visits. Shipping lives under its own
// key and card details are never written.
type persisted struct {
	Step         Step                  `json:"step"`
	Payment      domain.PaymentSummary `json:"payment"`
	Order        *domain.Order         `json:"order,omitempty"`
	Confirmation *domain.Confirmation  `json:"confirmation,omitempty"`
}

type Orchestrator struct {
	mu        sync.Mutex
	state     State
	cart      Cart
	submitter Submitter
	validate  *Validator
	kv        storage.Store
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithClock overrides time.Now for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func Open(ctx context.Context, kv storage.Store, c Cart, submitter Submitter, v *Validator, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:     State{Step: StepShipping},
		cart:      c,
		submitter: submitter,
		validate:  v,
		kv:        kv,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	var p persisted
	if err := storage.GetJSON(ctx, kv, storage.KeyCheckout, &p); err == nil && p.Step.Valid() {
		o.state.Step = p.Step
		o.state.Payment = p.Payment
		o.state.Order = p.Order
		o.state.Confirmation = p.Confirmation
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warn("restore checkout failed", "error", err)
	}
	if err := storage.GetJSON(ctx, kv, storage.KeyShippingInfo, &o.state.Shipping); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warn("restore shipping info failed", "error", err)
	}
	return o
}

// Current returns the state the customer should see. An empty cart preempts
// every step except a confirmed order.
func (o *Orchestrator) Current() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current()
}

func (o *Orchestrator) current() State {
	s := o.state
	if !s.Step.IsTerminal() && o.cart.IsEmpty() {
		s.Step = StepEmptyCart
	}
	return s
}

// SubmitShipping validates the shipping form and moves to payment. The
// submitted values are kept even when validation fails.
func (o *Orchestrator) SubmitShipping(ctx context.Context, info domain.ShippingInfo) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guard(StepShipping, StepPayment); err != nil {
		return o.current(), err
	}

	o.state.Shipping = info
	o.persistShipping(ctx)
	if err := o.validate.Shipping(info); err != nil {
		return o.current(), err
	}

	o.state.Step = StepPayment
	o.persist(ctx)
	return o.current(), nil
}

// SubmitPayment validates the payment form and moves to review. Only the
// method, cardholder and last four digits are retained.
func (o *Orchestrator) SubmitPayment(ctx context.Context, info domain.PaymentInfo) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guard(StepPayment, StepReview); err != nil {
		return o.current(), err
	}
	if err := o.validate.Payment(info); err != nil {
		return o.current(), err
	}

	o.state.Payment = info.Summary()
	o.state.Step = StepReview
	o.persist(ctx)
	return o.current(), nil
}

// Back steps from payment to shipping or from review to payment. Entered
// data is preserved.
func (o *Orchestrator) Back(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var prev Step
	switch o.state.Step {
	case StepPayment:
		prev = StepShipping
	case StepReview:
		prev = StepPayment
	default:
		return o.current(), fmt.Errorf("%w: no step before %s", IllegalTransitionError, o.state.Step)
	}
	if !CanTransitionTo(o.state.Step, prev) {
		return o.current(), illegalTransition(o.state.Step, prev)
	}

	o.state.Step = prev
	o.persist(ctx)
	return o.current(), nil
}

// PlaceOrder snapshots the cart and submits it. On failure the step stays
// at review and the cart is untouched so the customer can retry.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guard(StepReview, StepConfirmed); err != nil {
		return o.current(), err
	}

	view, err := o.cart.View(ctx)
	if err != nil {
		return o.current(), fmt.Errorf("load cart: %w", err)
	}
	if view.IsEmpty() {
		return o.current(), ErrEmptyCart
	}

	order, err := o.snapshot(view)
	if err != nil {
		return o.current(), err
	}

	conf, err := o.submitter.Submit(ctx, order)
	if err != nil {
		o.log.WithContext(ctx).Error("order submission failed", "error", err)
		return o.current(), fmt.Errorf("submit order: %w", err)
	}
	order.Number = conf.OrderNumber

	o.state.Step = StepConfirmed
	o.state.Order = order
	o.state.Confirmation = conf
	o.persist(ctx)

	o.cart.Clear(ctx)
	if err := o.kv.Delete(ctx, storage.KeyShippingInfo); err != nil {
		o.log.Warn("delete shipping info failed", "error", err)
	}

	o.log.WithContext(ctx).Info("order placed",
		"order_number", conf.OrderNumber,
		"grand_total", order.Totals.GrandTotal.StringFixed(2),
		"items", len(order.Items),
		"redirect", conf.RedirectURL != "")
	return o.current(), nil
}

// Reset starts a fresh checkout. Shipping details are kept until an order
// has been placed with them.
func (o *Orchestrator) Reset(ctx context.Context) State {
	o.mu.Lock()
	defer o.mu.Unlock()

	shipping := o.state.Shipping
	if o.state.Step == StepConfirmed {
		shipping = domain.ShippingInfo{}
	}
	o.state = State{Step: StepShipping, Shipping: shipping}
	o.persist(ctx)
	return o.current()
}

func (o *Orchestrator) guard(from, to Step) error {
	if !o.state.Step.IsTerminal() && o.cart.IsEmpty() {
		return ErrEmptyCart
	}
	if o.state.Step != from || !CanTransitionTo(from, to) {
		return illegalTransition(o.state.Step, to)
	}
	return nil
}

func (o *Orchestrator) snapshot(view cart.View) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(view.Items))
	for _, line := range view.Items {
		if line.Quantity > line.Stock {
			return nil, fmt.Errorf("%w: product %d wants %d, %d left", ErrStockExceeded, line.ProductID, line.Quantity, line.Stock)
		}
		if !line.UnitPrice.Valid {
			return nil, fmt.Errorf("%w: product %d", ErrPriceUnavailable, line.ProductID)
		}
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.Decimal,
			Subtotal:    line.LineTotal,
		})
	}

	order := &domain.Order{
		Items:     items,
		Shipping:  o.state.Shipping,
		Payment:   o.state.Payment,
		Currency:  DefaultCurrency,
		CreatedAt: o.now().UTC(),
	}
	if view.Totals != nil {
		order.Totals = *view.Totals
	}
	return order, nil
}

// persist must be called with mu held.
func (o *Orchestrator) persist(ctx context.Context) {
	p := persisted{
		Step:         o.state.Step,
		Payment:      o.state.Payment,
		Order:        o.state.Order,
		Confirmation: o.state.Confirmation,
	}
	if err := storage.SetJSON(ctx, o.kv, storage.KeyCheckout, p); err != nil {
		o.log.WithContext(ctx).Warn("persist checkout failed", "error", err)
	}
}

func (o *Orchestrator) persistShipping(ctx context.Context) {
	if err := storage.SetJSON(ctx, o.kv, storage.KeyShippingInfo, o.state.Shipping); err != nil {
		o.log.WithContext(ctx).Warn("persist shipping info failed", "error", err)
	}
}
