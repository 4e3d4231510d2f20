package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisCartStore(t *testing.T, ttl time.Duration) (*RedisCartStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCartStore(client, ttl), mr
}

func testLines() []cart.Line {
	return []cart.Line{
		{ProductID: "1", Name: "Wireless Headphones", UnitPrice: decimal.RequireFromString("99.99"), Quantity: 2},
		{ProductID: "3", Name: "Running Shoes", UnitPrice: decimal.RequireFromString("79.99"), Quantity: 1},
	}
}

func TestRedisCartStore_SaveAndGet(t *testing.T) {
	s, mr := setupTestRedisCartStore(t, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "user-1", testLines()))

	lines, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ProductID)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, 2, lines[0].Quantity)

	assert.True(t, mr.Exists("cart:user-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:user-1"))
}

func TestRedisCartStore_GetMissing(t *testing.T) {
	s, _ := setupTestRedisCartStore(t, 0)

	lines, err := s.Get(context.Background(), "guest")

	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRedisCartStore_Clear(t *testing.T) {
	s, mr := setupTestRedisCartStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "guest", testLines()))

	require.NoError(t, s.Clear(ctx, "guest"))
	require.NoError(t, s.Clear(ctx, "guest"))

	assert.False(t, mr.Exists("cart:guest"))
}

func TestRedisCartStore_SaveEmptyClears(t *testing.T) {
	s, mr := setupTestRedisCartStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "guest", testLines()))

	require.NoError(t, s.Save(ctx, "guest", nil))

	assert.False(t, mr.Exists("cart:guest"))
}

func TestRedisCartStore_IdentitiesAreIsolated(t *testing.T) {
	s, _ := setupTestRedisCartStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "user-1", testLines()))

	lines, err := s.Get(ctx, "user-2")

	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRedisCartStore_CorruptData(t *testing.T) {
	s, mr := setupTestRedisCartStore(t, 0)
	require.NoError(t, mr.Set("cart:guest", "not json"))

	_, err := s.Get(context.Background(), "guest")

	assert.Error(t, err)
}

func TestMemoryCartStore_RoundTrip(t *testing.T) {
	s := NewMemoryCartStore()
	ctx := context.Background()
	lines := testLines()

	require.NoError(t, s.Save(ctx, "guest", lines))
	lines[0].Quantity = 50

	got, err := s.Get(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, 2, got[0].Quantity)

	require.NoError(t, s.Clear(ctx, "guest"))
	got, err = s.Get(ctx, "guest")
	require.NoError(t, err)
	assert.Empty(t, got)
}
