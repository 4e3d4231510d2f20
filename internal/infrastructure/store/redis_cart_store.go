package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// RedisCartStore keeps each cart as a JSON document under cart:<identity>.
// A zero ttl keeps carts until cleared.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func (s *RedisCartStore) Get(ctx context.Context, identity string) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, cartKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []cart.Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return lines, nil
}

func (s *RedisCartStore) Save(ctx context.Context, identity string, lines []cart.Line) error {
	if len(lines) == 0 {
		return s.Clear(ctx, identity)
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(identity), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisCartStore) Clear(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, cartKey(identity)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(identity string) string {
	return fmt.Sprintf("cart:%s", identity)
}
