package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, ttl), mr
}

func TestStore_Seen(t *testing.T) {
	s, mr := setupTestStore(t, time.Hour)
	ctx := context.Background()

	seen, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.True(t, mr.Exists("idem:webhook:evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("idem:webhook:evt_1"))
}

func TestStore_Forget(t *testing.T) {
	s, _ := setupTestStore(t, time.Hour)
	ctx := context.Background()

	_, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	require.NoError(t, s.Forget(ctx, "evt_1"))

	seen, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStore_Expiry(t *testing.T) {
	s, mr := setupTestStore(t, time.Minute)
	ctx := context.Background()

	_, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	seen, err := s.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStore_RedisDown(t *testing.T) {
	s, mr := setupTestStore(t, time.Minute)
	mr.Close()

	_, err := s.Seen(context.Background(), "evt_1")

	assert.Error(t, err)
}
