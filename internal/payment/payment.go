// Package payment submits placed orders. Off-site methods go to a hosted
// checkout page; the rest are confirmed locally.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrRejected           = errors.New("payment rejected")
)

type Submitter interface {
	Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error)
}

// NewOrderNumber returns a customer-facing reference like RM-20260314-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("RM-%s-%s", now.UTC().Format("20060102"), id[:8])
}

// Offline confirms orders without contacting anyone. Used for demo methods.
type Offline struct {
	now func() time.Time
}

func NewOffline() *Offline {
	return &Offline{now: time.Now}
}

func (o *Offline) Submit(_ context.Context, order *domain.Order) (*domain.Confirmation, error) {
	now := o.now().UTC()
	number := order.Number
	if number == "" {
		number = NewOrderNumber(now)
	}
	return &domain.Confirmation{OrderNumber: number, Timestamp: now}, nil
}

// Router picks the hosted gateway for off-site methods and the offline
// confirmer for everything else. Orders get their number here.
type Router struct {
	offsite map[domain.PaymentMethod]bool
	hosted  Submitter
	offline Submitter
	now     func() time.Time
}

// NewRouter sends methods listed in offsite to hosted. A nil hosted makes
// every method offline.
func NewRouter(offsite []string, hosted, offline Submitter) *Router {
	r := &Router{
		offsite: make(map[domain.PaymentMethod]bool, len(offsite)),
		hosted:  hosted,
		offline: offline,
		now:     time.Now,
	}
	for _, m := range offsite {
		r.offsite[domain.PaymentMethod(strings.TrimSpace(m))] = true
	}
	return r
}

func (r *Router) IsOffsite(m domain.PaymentMethod) bool {
	return r.hosted != nil && r.offsite[m]
}

func (r *Router) Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error) {
	if order.Number == "" {
		order.Number = NewOrderNumber(r.now())
	}
	if r.IsOffsite(order.Payment.Method) {
		return r.hosted.Submit(ctx, order)
	}
	return r.offline.Submit(ctx, order)
}
