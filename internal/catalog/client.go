package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type response struct {
	status int
	body   []byte
}

// Client talks to the catalog backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[response]
	log     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	settings := circuitbreaker.DefaultSettings("catalog")
	settings.OnStateChange = func(name, from, to string) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  circuitbreaker.New[response](settings),
		log: log,
	}
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	res, err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("%w: get product %d: status %d", ErrUnavailable, id, res.status)
	}

	var p domain.Product
	if err := json.Unmarshal(res.body, &p); err != nil {
		return nil, fmt.Errorf("decode product %d failed: %w", id, err)
	}
	return &p, nil
}

// ListProducts never fails on transport problems: it returns an empty,
// degraded page and logs the cause.
func (c *Client) ListProducts(ctx context.Context, f Filters) (*Page, error) {
	res, err := c.get(ctx, "/products?"+f.Query().Encode())
	if err == nil && res.status != http.StatusOK {
		err = fmt.Errorf("%w: list products: status %d", ErrUnavailable, res.status)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.log.WithContext(ctx).Warn("catalog listing degraded", "error", err)
		page := EmptyPage()
		page.Degraded = true
		return page, nil
	}

	var page Page
	if err := json.Unmarshal(res.body, &page); err != nil {
		return nil, fmt.Errorf("decode product page failed: %w", err)
	}
	if page.Items == nil {
		page.Items = []*domain.Product{}
	}
	return &page, nil
}

// get counts transport errors and 5xx responses as breaker failures. 4xx
// responses are returned to the caller untouched.
func (c *Client) get(ctx context.Context, path string) (response, error) {
	res, err := c.cb.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return response{}, fmt.Errorf("status %d", resp.StatusCode)
		}
		return response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return response{}, err
		}
		if circuitbreaker.IsOpen(err) {
			c.log.WithContext(ctx).Debug("catalog call short-circuited", "path", path)
		}
		return response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}
