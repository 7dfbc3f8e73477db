package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type submitRequest struct {
	OrderNumber   string                  `json:"orderNumber"`
	CartItems     []domain.OrderItem      `json:"cartItems"`
	ShippingInfo  domain.ShippingInfo     `json:"shippingInfo"`
	PaymentMethod domain.PaymentSummary   `json:"paymentMethod"`
	Totals        domain.PricingBreakdown `json:"totals"`
	Currency      string                  `json:"currency"`
}

type submitResponse struct {
	RedirectURL string    `json:"redirectUrl"`
	OrderNumber string    `json:"orderNumber"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error"`
}

// Hosted posts orders to a hosted checkout endpoint that answers with a
// redirect URL or a confirmation.
type Hosted struct {
	url  string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[submitResponse]
	log  *logger.Logger
	now  func() time.Time
}

func NewHosted(url string, timeout time.Duration, log *logger.Logger) *Hosted {
	settings := circuitbreaker.DefaultSettings("payment")
	settings.OnStateChange = func(name, from, to string) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	}
	return &Hosted{
		url: url,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  circuitbreaker.New[submitResponse](settings),
		log: log,
		now: time.Now,
	}
}

func (h *Hosted) Submit(ctx context.Context, order *domain.Order) (*domain.Confirmation, error) {
	body, err := json.Marshal(submitRequest{
		OrderNumber:   order.Number,
		CartItems:     order.Items,
		ShippingInfo:  order.Shipping,
		PaymentMethod: order.Payment,
		Totals:        order.Totals,
		Currency:      order.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order failed: %w", err)
	}

	var rejected error
	res, err := h.cb.Execute(func() (submitResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
		if err != nil {
			return submitResponse{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", order.Number)

		resp, err := h.http.Do(req)
		if err != nil {
			return submitResponse{}, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return submitResponse{}, err
		}
		var out submitResponse
		_ = json.Unmarshal(raw, &out)

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return submitResponse{}, fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			// a refusal is an answer, not an outage
			rejected = fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, out.Error)
			return submitResponse{}, nil
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if rejected != nil {
		return nil, rejected
	}

	conf := &domain.Confirmation{
		OrderNumber: res.OrderNumber,
		Timestamp:   res.Timestamp,
		RedirectURL: res.RedirectURL,
	}
	if conf.OrderNumber == "" {
		conf.OrderNumber = order.Number
	}
	if conf.Timestamp.IsZero() {
		conf.Timestamp = h.now().UTC()
	}
	if conf.RedirectURL == "" && res.OrderNumber == "" {
		return nil, fmt.Errorf("%w: empty gateway response", ErrGatewayUnavailable)
	}
	h.log.WithContext(ctx).Info("order handed to hosted checkout", "order_number", conf.OrderNumber, "redirect", conf.RedirectURL != "")
	return conf, nil
}
