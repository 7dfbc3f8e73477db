package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	catalog catalog.Accessor
	timeout time.Duration
	log     *logger.Logger
}

func NewCatalogHandler(cat catalog.Accessor, timeout time.Duration, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: cat,
		timeout: timeout,
		log:     log,
	}
}

type RecentlyViewedResponse struct {
	ProductIDs []int64 `json:"product_ids"`
}

// List proxies the catalog listing through the session's product list so
// a response overtaken by a newer request is flagged as stale.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	f, err := catalog.ParseFilters(r.URL.Query())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	res, err := s.Products.Fetch(ctx, f)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.Header().Set("X-Request-Seq", strconv.FormatUint(res.Seq, 10))
	if res.Stale {
		w.Header().Set("X-Result-Stale", "true")
	}
	respondJSON(w, http.StatusOK, res.Page)
}

func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := mustSession(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	s.Recent.Record(ctx, p.ID)
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) RecentlyViewed(w http.ResponseWriter, r *http.Request) {
	s, ok := mustSession(w, r)
	if !ok {
		return
	}
	ids := s.Recent.IDs()
	if ids == nil {
		ids = []int64{}
	}
	respondJSON(w, http.StatusOK, RecentlyViewedResponse{ProductIDs: ids})
}
