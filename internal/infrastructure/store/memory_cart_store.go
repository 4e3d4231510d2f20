package store

import (
	"context"
	"sync"

	"github.com/example/ec-checkout/internal/domain/cart"
)

// MemoryCartStore keeps carts in process memory, one entry per identity.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string][]cart.Line
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string][]cart.Line)}
}

func (s *MemoryCartStore) Get(ctx context.Context, identity string) ([]cart.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.carts[identity]
	out := make([]cart.Line, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *MemoryCartStore) Save(ctx context.Context, identity string, lines []cart.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]cart.Line, len(lines))
	copy(stored, lines)
	s.carts[identity] = stored
	return nil
}

func (s *MemoryCartStore) Clear(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, identity)
	return nil
}
