package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/checkout"
	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/payment"
	"github.com/alaineid/robomarket-ae-sub000/internal/pricing"
	"github.com/alaineid/robomarket-ae-sub000/internal/session"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	m        sync.RWMutex
	products map[int64]*domain.Product
	err      error
}

func (c *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *mockCatalog) ListProducts(_ context.Context, f catalog.Filters) (*catalog.Page, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	page := catalog.EmptyPage()
	for _, p := range c.products {
		if f.Search == "" || p.Name == f.Search {
			cp := *p
			page.Items = append(page.Items, &cp)
		}
	}
	page.Total = len(page.Items)
	return page, nil
}

func (c *mockCatalog) put(p *domain.Product) {
	c.m.Lock()
	defer c.m.Unlock()
	c.products[p.ID] = p
}

func (c *mockCatalog) fail(err error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.err = err
}

func (c *mockCatalog) remove(id int64) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.products, id)
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, *domain.Order) (*domain.Confirmation, error) {
	return nil, payment.ErrGatewayUnavailable
}

type testServer struct {
	*httptest.Server
	client  *http.Client
	catalog *mockCatalog
}

func newTestServer(t *testing.T, submitter checkout.Submitter) *testServer {
	t.Helper()
	cat := &mockCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Arm X1", Price: decimal.NewNullDecimal(decimal.RequireFromString("85.00")), Stock: 5},
		2: {ID: 2, Name: "Rover", Price: decimal.NewNullDecimal(decimal.RequireFromString("150.00")), Stock: 2},
	}}
	if submitter == nil {
		submitter = payment.NewRouter(nil, nil, payment.NewOffline())
	}

	log := logger.Nop()
	sessions := session.NewManager(session.Deps{
		Store:     storage.NewMemoryStore(),
		Catalog:   cat,
		Pricing:   pricing.NewEngine(pricing.DefaultRules()),
		Submitter: submitter,
		Log:       log,
	}, time.Hour)
	t.Cleanup(func() { _ = sessions.Close() })

	srv := httptest.NewServer(NewRouter(Deps{
		Catalog:        cat,
		Sessions:       sessions,
		Log:            log,
		RequestTimeout: 5 * time.Second,
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, client: &http.Client{Jar: jar}, catalog: cat}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type cartJSON struct {
	Items []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
	Count   int     `json:"count"`
	Orphans []int64 `json:"orphans"`
	Totals  struct {
		ShippingCost string `json:"shipping_cost"`
		TaxAmount    string `json:"tax_amount"`
		GrandTotal   string `json:"grand_total"`
		PromoValid   *bool  `json:"promo_valid"`
	} `json:"totals"`
	Display struct {
		ShippingCost string `json:"shipping_cost"`
		GrandTotal   string `json:"grand_total"`
	} `json:"display"`
}

type stateJSON struct {
	Step         string               `json:"step"`
	Shipping     domain.ShippingInfo  `json:"shipping_info"`
	Confirmation *domain.Confirmation `json:"confirmation"`
}

func validShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Address:    "12 Analytical Row",
		City:       "London",
		PostalCode: "N1 7AA",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	var body map[string]string
	resp := s.do(t, http.MethodGet, "/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCart_AddAndPrice(t *testing.T) {
	s := newTestServer(t, nil)

	var added QuantityResponse
	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, &added)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, added.Quantity)

	var c cartJSON
	resp = s.do(t, http.MethodGet, "/api/v1/cart", nil, &c)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, c.Count)
	assert.Equal(t, "15", c.Totals.ShippingCost)
	assert.Equal(t, "4.25", c.Totals.TaxAmount)
	assert.Equal(t, "104.25", c.Totals.GrandTotal)
	assert.Nil(t, c.Totals.PromoValid)
	assert.Equal(t, "15.00", c.Display.ShippingCost)
	assert.Equal(t, "104.25", c.Display.GrandTotal)
}

func TestCart_SessionCookieKeepsCartAcrossRequests(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2}, nil)

	var c cartJSON
	s.do(t, http.MethodGet, "/api/v1/cart", nil, &c)
	assert.Equal(t, 2, c.Count)

	other := &http.Client{}
	resp, err := other.Get(s.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer resp.Body.Close()
	var fresh cartJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fresh))
	assert.Equal(t, 0, fresh.Count)
}

func TestCart_UpdateClampsToStock(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 3}, nil)

	var out struct {
		Quantity int      `json:"quantity"`
		Cart     cartJSON `json:"cart"`
	}
	resp := s.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 10}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, out.Quantity)
	assert.Equal(t, 5, out.Cart.Count)
}

func TestCart_AddClampedOutOfStock(t *testing.T) {
	s := newTestServer(t, nil)
	s.catalog.put(&domain.Product{ID: 3, Name: "Sold out", Price: decimal.NewNullDecimal(decimal.NewFromInt(1))})

	var added QuantityResponse
	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 5, ClampToStock: true}, &added)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, added.Quantity)

	var errBody ErrorResponse
	resp = s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 3, Quantity: 1, ClampToStock: true}, &errBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "out_of_stock", errBody.Code)
}

func TestCart_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	var errBody ErrorResponse
	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 0}, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_quantity", errBody.Code)

	resp = s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 42, Quantity: 1}, &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errBody.Code)

	resp = s.do(t, http.MethodPut, "/api/v1/cart/items/abc", UpdateQuantityRequestDTO{Quantity: 1}, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 1}, &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_RemoveAndClear(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1}, nil)

	var c cartJSON
	s.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil, &c)
	assert.Equal(t, 1, c.Count)
	s.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil, &c)
	assert.Equal(t, 1, c.Count)

	s.do(t, http.MethodDelete, "/api/v1/cart", nil, &c)
	assert.Equal(t, 0, c.Count)
}

func TestCart_PromoAndReconcile(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1}, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, nil)

	var promo struct {
		Valid bool     `json:"valid"`
		Cart  cartJSON `json:"cart"`
	}
	s.do(t, http.MethodPost, "/api/v1/cart/promo", PromoRequestDTO{Code: "robo20"}, &promo)
	assert.True(t, promo.Valid)

	s.catalog.remove(1)
	var c cartJSON
	s.do(t, http.MethodGet, "/api/v1/cart", nil, &c)
	assert.Equal(t, []int64{1}, c.Orphans)
	// 150 + 0 + 7.50 - 20
	assert.Equal(t, "137.5", c.Totals.GrandTotal)

	var rec struct {
		Removed []int64  `json:"removed"`
		Cart    cartJSON `json:"cart"`
	}
	s.do(t, http.MethodPost, "/api/v1/cart/reconcile", nil, &rec)
	assert.Equal(t, []int64{1}, rec.Removed)
	assert.Empty(t, rec.Cart.Orphans)

	s.do(t, http.MethodDelete, "/api/v1/cart/promo", nil, &c)
	assert.Nil(t, c.Totals.PromoValid)
}

func TestCatalog_ListDetailAndRecentlyViewed(t *testing.T) {
	s := newTestServer(t, nil)

	var page catalog.Page
	resp := s.do(t, http.MethodGet, "/api/v1/products?search=Rover", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Rover", page.Items[0].Name)
	assert.Empty(t, resp.Header.Get("X-Result-Stale"))

	var errBody ErrorResponse
	resp = s.do(t, http.MethodGet, "/api/v1/products?sort_by=cheapest", nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_filter", errBody.Code)

	var p domain.Product
	s.do(t, http.MethodGet, "/api/v1/products/2", nil, &p)
	s.do(t, http.MethodGet, "/api/v1/products/1", nil, &p)
	s.do(t, http.MethodGet, "/api/v1/products/2", nil, &p)
	assert.Equal(t, "Rover", p.Name)

	resp = s.do(t, http.MethodGet, "/api/v1/products/99", nil, &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var recent RecentlyViewedResponse
	s.do(t, http.MethodGet, "/api/v1/recently-viewed", nil, &recent)
	assert.Equal(t, []int64{2, 1}, recent.ProductIDs)
}

func TestCatalog_Unavailable(t *testing.T) {
	s := newTestServer(t, nil)
	s.catalog.fail(catalog.ErrUnavailable)

	var errBody ErrorResponse
	resp := s.do(t, http.MethodGet, "/api/v1/products/1", nil, &errBody)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "service_unavailable", errBody.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t, nil)

	var st stateJSON
	s.do(t, http.MethodGet, "/api/v1/checkout", nil, &st)
	assert.Equal(t, "EMPTY_CART", st.Step)

	var errBody ErrorResponse
	resp := s.do(t, http.MethodPost, "/api/v1/checkout/shipping", validShipping(), &errBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "empty_cart", errBody.Code)
}

func TestCheckout_MissingEmail(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, nil)

	info := validShipping()
	info.Email = ""
	var errBody ErrorResponse
	resp := s.do(t, http.MethodPost, "/api/v1/checkout/shipping", info, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_failed", errBody.Code)
	assert.Equal(t, "Email is required", errBody.Fields["email"])

	var st stateJSON
	s.do(t, http.MethodGet, "/api/v1/checkout", nil, &st)
	assert.Equal(t, "SHIPPING", st.Step)
	assert.Equal(t, "Ada", st.Shipping.FirstName)

	var c cartJSON
	s.do(t, http.MethodGet, "/api/v1/cart", nil, &c)
	assert.Equal(t, 1, c.Count)
}

func TestCheckout_FullFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 1}, nil)

	var st stateJSON
	resp := s.do(t, http.MethodPost, "/api/v1/checkout/shipping", validShipping(), &st)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAYMENT", st.Step)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/payment", domain.PaymentInfo{Method: domain.PaymentApplePay}, &st)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "REVIEW", st.Step)

	s.do(t, http.MethodPost, "/api/v1/checkout/back", nil, &st)
	assert.Equal(t, "PAYMENT", st.Step)
	s.do(t, http.MethodPost, "/api/v1/checkout/payment", domain.PaymentInfo{Method: domain.PaymentApplePay}, &st)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/place-order", nil, &st)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "CONFIRMED", st.Step)
	require.NotNil(t, st.Confirmation)
	assert.Regexp(t, `^RM-`, st.Confirmation.OrderNumber)

	var c cartJSON
	s.do(t, http.MethodGet, "/api/v1/cart", nil, &c)
	assert.Equal(t, 0, c.Count)

	s.do(t, http.MethodPost, "/api/v1/checkout/reset", nil, &st)
	assert.Equal(t, "EMPTY_CART", st.Step)
}

func TestCheckout_SubmissionFailureIsRetryable(t *testing.T) {
	s := newTestServer(t, failingSubmitter{})
	s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}, nil)
	s.do(t, http.MethodPost, "/api/v1/checkout/shipping", validShipping(), nil)
	s.do(t, http.MethodPost, "/api/v1/checkout/payment", domain.PaymentInfo{Method: domain.PaymentPayPal}, nil)

	var errBody ErrorResponse
	resp := s.do(t, http.MethodPost, "/api/v1/checkout/place-order", nil, &errBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "payment_unavailable", errBody.Code)

	var st stateJSON
	s.do(t, http.MethodGet, "/api/v1/checkout", nil, &st)
	assert.Equal(t, "REVIEW", st.Step)
}

func TestHandleServiceError_Unknown(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	handleServiceError(rec, req, logger.Nop(), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal_error", body.Code)
	assert.NotContains(t, body.Error, "boom")
}

func TestHandleServiceError_CanceledIsNotInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	handleServiceError(rec, req, logger.Nop(), fmt.Errorf("load product 1: %w", context.Canceled))

	assert.Equal(t, StatusClientClosedRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "request_canceled", body.Code)
}
