package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/cart"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/session"
	"github.com/go-chi/chi/v5"
)

const maxQuantity = 99

type CartHandler struct {
	timeout time.Duration
	log     *logger.Logger
}

func NewCartHandler(timeout time.Duration, log *logger.Logger) *CartHandler {
	return &CartHandler{
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID    int64 `json:"product_id"`
	Quantity     int   `json:"quantity"`
	ClampToStock bool  `json:"clamp_to_stock"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type PromoRequestDTO struct {
	Code string `json:"code"`
}

type QuantityResponse struct {
	Quantity int       `json:"quantity"`
	Cart     cart.View `json:"cart"`
}

type PromoResponse struct {
	Valid bool      `json:"valid"`
	Cart  cart.View `json:"cart"`
}

type ReconcileResponse struct {
	cart.ReconcileResult
	Cart cart.View `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	h.respondView(ctx, w, r, s, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	added := req.Quantity
	var err error
	if req.ClampToStock {
		added, err = s.Cart.AddItemClamped(ctx, req.ProductID, req.Quantity)
	} else {
		err = s.Cart.AddItem(ctx, req.ProductID, req.Quantity)
	}
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	view, err := s.Cart.View(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, QuantityResponse{Quantity: added, Cart: view})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	quantity, err := s.Cart.UpdateQuantity(ctx, productID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	view, err := s.Cart.View(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, QuantityResponse{Quantity: quantity, Cart: view})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	s.Cart.RemoveItem(ctx, productID)
	h.respondView(ctx, w, r, s, http.StatusOK)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	s.Cart.Clear(ctx)
	h.respondView(ctx, w, r, s, http.StatusOK)
}

func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	res, err := s.Cart.Reconcile(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	view, err := s.Cart.View(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ReconcileResponse{ReconcileResult: res, Cart: view})
}

func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	var req PromoRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	valid := s.Cart.ApplyPromo(ctx, req.Code)
	view, err := s.Cart.View(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, PromoResponse{Valid: valid, Cart: view})
}

func (h *CartHandler) ClearPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	s.Cart.ClearPromo(ctx)
	h.respondView(ctx, w, r, s, http.StatusOK)
}

func (h *CartHandler) respondView(ctx context.Context, w http.ResponseWriter, r *http.Request, s *session.Session, status int) {
	view, err := s.Cart.View(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, status, view)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
