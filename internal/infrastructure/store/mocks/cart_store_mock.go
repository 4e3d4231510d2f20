package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-checkout/internal/domain/cart"
)

// MockCartStore is a cart.Store with error injection and call tracking.
type MockCartStore struct {
	mu    sync.Mutex
	carts map[string][]cart.Line

	GetErr   error
	SaveErr  error
	ClearErr error

	ClearCalls []string
}

func NewMockCartStore() *MockCartStore {
	return &MockCartStore{carts: make(map[string][]cart.Line)}
}

// Seed puts lines in a cart without recording a call.
func (m *MockCartStore) Seed(identity string, lines []cart.Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[identity] = append([]cart.Line(nil), lines...)
}

// Lines returns the current contents of a cart.
func (m *MockCartStore) Lines(identity string) []cart.Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Line(nil), m.carts[identity]...)
}

func (m *MockCartStore) Get(ctx context.Context, identity string) ([]cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return append([]cart.Line{}, m.carts[identity]...), nil
}

func (m *MockCartStore) Save(ctx context.Context, identity string, lines []cart.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.carts[identity] = append([]cart.Line(nil), lines...)
	return nil
}

func (m *MockCartStore) Clear(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalls = append(m.ClearCalls, identity)
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.carts, identity)
	return nil
}
