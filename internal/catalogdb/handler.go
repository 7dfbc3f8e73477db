package catalogdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, f catalog.Filters) (*catalog.Page, error)
}

type Handler struct {
	products ProductReader
	timeout  time.Duration
	log      *logger.Logger
}

func NewHandler(products ProductReader, timeout time.Duration, log *logger.Logger) *Handler {
	return &Handler{products: products, timeout: timeout, log: log}
}

// Routes serves the catalog query interface the storefront consumes.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)

	return otelhttp.NewHandler(r, "catalogd")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, err := catalog.ParseFilters(r.URL.Query())
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	page, err := h.products.ListProducts(ctx, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be a positive integer"})
		return
	}

	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, catalog.ErrInvalidFilter):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.log.WithContext(r.Context()).Error("catalog query failed", "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
