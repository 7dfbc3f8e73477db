package http

import (
	"net/http"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Deps struct {
	Catalog        catalog.Accessor
	Sessions       *session.Manager
	Log            *logger.Logger
	RequestTimeout time.Duration
	Cookie         session.CookieOptions
}

func NewRouter(d Deps) http.Handler {
	catalogHandler := NewCatalogHandler(d.Catalog, d.RequestTimeout, d.Log)
	cartHandler := NewCartHandler(d.RequestTimeout, d.Log)
	checkoutHandler := NewCheckoutHandler(d.RequestTimeout, d.Log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(session.Middleware(d.Sessions, d.Cookie))

		r.Get("/products", catalogHandler.List)
		r.Get("/products/{id}", catalogHandler.Get)
		r.Get("/recently-viewed", catalogHandler.RecentlyViewed)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/reconcile", cartHandler.Reconcile)
			r.Post("/promo", cartHandler.ApplyPromo)
			r.Delete("/promo", cartHandler.ClearPromo)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.Get)
			r.Post("/shipping", checkoutHandler.Shipping)
			r.Post("/payment", checkoutHandler.Payment)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/place-order", checkoutHandler.PlaceOrder)
			r.Post("/reset", checkoutHandler.Reset)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
