package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers processed webhook event ids for ttl.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(eventID string) string {
	return fmt.Sprintf("idem:webhook:%s", eventID)
}

// Seen marks eventID as processed and reports whether it already was.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.Key(eventID), "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget drops the marker so a redelivery of a failed event is processed again.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	return s.rdb.Del(ctx, s.Key(eventID)).Err()
}
