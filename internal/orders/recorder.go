// Package orders keeps a record of every order that was handed to payment,
// either in Postgres or as events on a Kafka topic.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateOrder = errors.New("order already recorded")
	ErrOrderNotFound  = errors.New("order not found")
)

const EventOrderPlaced = "order_placed"

type Recorder interface {
	Record(ctx context.Context, order *domain.Order, conf *domain.Confirmation) error
}

// PlacedEvent is the record written to every sink.
type PlacedEvent struct {
	OrderNumber   string                  `json:"order_number"`
	Email         string                  `json:"email"`
	Items         []domain.OrderItem      `json:"items"`
	Shipping      domain.ShippingInfo     `json:"shipping_info"`
	PaymentMethod domain.PaymentMethod    `json:"payment_method"`
	Totals        domain.PricingBreakdown `json:"totals"`
	Currency      string                  `json:"currency"`
	RedirectURL   string                  `json:"redirect_url,omitempty"`
	PlacedAt      time.Time               `json:"placed_at"`
}

func NewPlacedEvent(order *domain.Order, conf *domain.Confirmation) PlacedEvent {
	ev := PlacedEvent{
		OrderNumber:   order.Number,
		Email:         order.Shipping.Email,
		Items:         order.Items,
		Shipping:      order.Shipping,
		PaymentMethod: order.Payment.Method,
		Totals:        order.Totals,
		Currency:      order.Currency,
		PlacedAt:      order.CreatedAt,
	}
	if conf != nil {
		ev.OrderNumber = conf.OrderNumber
		ev.RedirectURL = conf.RedirectURL
		if !conf.Timestamp.IsZero() {
			ev.PlacedAt = conf.Timestamp
		}
	}
	return ev
}

// GrandTotal is a convenience for logging.
func (e PlacedEvent) GrandTotal() decimal.Decimal {
	return e.Totals.GrandTotal
}

type Submitter interface {
	Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error)
}

// RecordingSubmitter records every successful submission. A recording
// failure is logged and never undoes the submission.
type RecordingSubmitter struct {
	inner    Submitter
	recorder Recorder
	log      *logger.Logger
}

func NewRecordingSubmitter(inner Submitter, recorder Recorder, log *logger.Logger) *RecordingSubmitter {
	return &RecordingSubmitter{inner: inner, recorder: recorder, log: log}
}

func (s *RecordingSubmitter) Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error) {
	conf, err := s.inner.Submit(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, order, conf); err != nil {
		s.log.WithContext(ctx).Error("record order failed", "order_number", conf.OrderNumber, "error", err)
	}
	return conf, nil
}
