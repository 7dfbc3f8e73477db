package catalogdb_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/catalogdb"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := setupTestDB(t)
	srv := httptest.NewServer(catalogdb.NewHandler(repo, 5*time.Second, logger.Nop()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ServesTheCatalogClient(t *testing.T) {
	srv := newCatalogServer(t)
	client := catalog.NewClient(srv.URL, 5*time.Second, logger.Nop())
	ctx := context.Background()

	p, err := client.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Rover Scout", p.Name)
	assert.Equal(t, "GearHub", p.Vendor)
	assert.True(t, p.Price.Decimal.Equal(price("150")))

	_, err = client.GetProduct(ctx, 404)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	page, err := client.ListProducts(ctx, catalog.Filters{Brands: []string{"Kinetix"}, Sort: catalog.SortPriceAsc, Limit: 2})
	require.NoError(t, err)
	assert.False(t, page.Degraded)
	assert.Equal(t, []int64{5, 1}, ids(page))
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)
}

func TestHandler_BadRequests(t *testing.T) {
	srv := newCatalogServer(t)

	for _, path := range []string{"/products?sort_by=cheapest", "/products?rating=9", "/products/abc"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandler_ListJSONShape(t *testing.T) {
	srv := newCatalogServer(t)

	resp, err := http.Get(srv.URL + "/products?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "products")
	assert.JSONEq(t, "true", string(body["hasMore"]))
	assert.JSONEq(t, "8", string(body["total"]))
}
