package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys of the per-session state. Values are JSON documents.
const (
	KeyCart           = "cart"
	KeyRecentlyViewed = "recentlyViewed"
	KeyShippingInfo   = "shippingInfo"
	KeyCheckout       = "checkout"
	KeyPromo          = "promo"
)

var ErrNotFound = errors.New("key not found")

// Store is the durable key/value store that backs per-session client state.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

type prefixed struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of inner under prefix.
func Namespace(inner Store, prefix string) Store {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}

// SessionPrefix is the namespace used for one browser session.
func SessionPrefix(sessionID string) string {
	return fmt.Sprintf("session:%s:", sessionID)
}
