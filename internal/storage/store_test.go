package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestNamespace_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	a := Namespace(inner, SessionPrefix("a"))
	b := Namespace(inner, SessionPrefix("b"))

	require.NoError(t, a.Set(ctx, KeyCart, []byte(`[1]`)))

	_, err := b.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := inner.Get(ctx, "session:a:cart")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(raw))

	require.NoError(t, a.Delete(ctx, KeyCart))
	assert.Equal(t, 0, inner.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type doc struct {
		Code string `json:"code"`
	}
	require.NoError(t, SetJSON(ctx, s, KeyPromo, doc{Code: "ROBO20"}))

	var out doc
	require.NoError(t, GetJSON(ctx, s, KeyPromo, &out))
	assert.Equal(t, "ROBO20", out.Code)

	require.NoError(t, s.Set(ctx, KeyCart, []byte("{not json")))
	err := GetJSON(ctx, s, KeyCart, &out)
	assert.ErrorContains(t, err, "unmarshal cart failed")

	err = GetJSON(ctx, s, "nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}
