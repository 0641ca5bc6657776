package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, OrderKey("o1"), []byte(`{"id":"o1"}`), time.Minute))

	v, ok, err := c.Get(ctx, "orders:o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"o1"}`, string(v))
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_InvalidatePattern(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	for _, k := range []string{"customers:c1:orders", "customers:c1:orders:page2", "customers:c1", "products:list:featured"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	require.NoError(t, c.Invalidate(ctx, CustomerOrdersPattern("c1")))
	require.NoError(t, c.Invalidate(ctx, ProductListPattern))

	_, ok, _ := c.Get(ctx, "customers:c1:orders")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "customers:c1:orders:page2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "products:list:featured")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, CustomerKey("c1"))
	assert.True(t, ok)
}

func TestMemory_InvalidateKey(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, ProductKey("p1"), []byte("x"), 0))

	require.NoError(t, c.Invalidate(ctx, ProductKey("p1")))

	_, ok, _ := c.Get(ctx, "products:p1")
	assert.False(t, ok)
}
