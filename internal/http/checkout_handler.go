package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
)

type CheckoutHandler struct {
	timeout time.Duration
	log     *logger.Logger
}

func NewCheckoutHandler(timeout time.Duration, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		timeout: timeout,
		log:     log,
	}
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Checkout.Current())
}

func (h *CheckoutHandler) Shipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	var req domain.ShippingInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	state, err := s.Checkout.SubmitShipping(ctx, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *CheckoutHandler) Payment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	var req domain.PaymentInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	state, err := s.Checkout.SubmitPayment(ctx, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	state, err := s.Checkout.Back(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	state, err := s.Checkout.PlaceOrder(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, state)
}

func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Checkout.Reset(r.Context()))
}
