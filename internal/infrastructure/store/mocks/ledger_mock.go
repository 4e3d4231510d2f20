package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store"
)

// MockLedger is an in-memory order.Ledger with error injection and call tracking.
type MockLedger struct {
	mu    sync.Mutex
	inner *store.MemoryLedger

	CreateErr     error
	FindErr       error
	TransitionErr error

	CreateCalls     []*order.Order
	TransitionCalls []TransitionCall
}

// TransitionCall records parameters passed to Transition
type TransitionCall struct {
	SessionID  string
	Transition order.Transition
	Applied    bool
}

func NewMockLedger() *MockLedger {
	return &MockLedger{inner: store.NewMemoryLedger()}
}

func (m *MockLedger) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, o.Clone())
	err := m.CreateErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.Create(ctx, o)
}

func (m *MockLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	m.mu.Lock()
	err := m.FindErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.FindBySessionID(ctx, sessionID)
}

func (m *MockLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	m.mu.Lock()
	err := m.TransitionErr
	m.mu.Unlock()

	if err != nil {
		return nil, false, err
	}
	o, applied, err := m.inner.Transition(ctx, sessionID, t)

	m.mu.Lock()
	m.TransitionCalls = append(m.TransitionCalls, TransitionCall{SessionID: sessionID, Transition: t, Applied: applied})
	m.mu.Unlock()
	return o, applied, err
}

func (m *MockLedger) ListPending(ctx context.Context, createdBefore time.Time) ([]*order.Order, error) {
	return m.inner.ListPending(ctx, createdBefore)
}

// AppliedTransitions counts transitions that changed an order.
func (m *MockLedger) AppliedTransitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.TransitionCalls {
		if c.Applied {
			n++
		}
	}
	return n
}
