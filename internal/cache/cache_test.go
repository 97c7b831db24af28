package cache_test

import (
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	ctx := t.Context()

	_, ok := c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "k", []byte("v"))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	require.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	c := cache.NewMemory(10 * time.Millisecond)
	ctx := t.Context()

	c.Set(ctx, "k", []byte("v"))
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	require.False(t, ok)
}

func TestMemoryClear(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	ctx := t.Context()

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Clear(ctx)

	_, ok := c.Get(ctx, "a")
	require.False(t, ok)
	_, ok = c.Get(ctx, "b")
	require.False(t, ok)
}
