package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
)

// MemoryLedger keeps orders in process memory. Transition runs under the write lock,
// which gives the same check-and-set guarantee as the database backends.
type MemoryLedger struct {
	mu        sync.RWMutex
	byID      map[string]*order.Order
	bySession map[string]string // sessionID -> orderID
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byID:      make(map[string]*order.Order),
		bySession: make(map[string]string),
	}
}

func (l *MemoryLedger) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.bySession[o.SessionID]; exists {
		return nil, order.ErrDuplicateSession
	}
	stored := o.Clone()
	l.byID[stored.ID] = stored
	l.bySession[stored.SessionID] = stored.ID
	return stored.Clone(), nil
}

func (l *MemoryLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.bySession[sessionID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return l.byID[id].Clone(), nil
}

func (l *MemoryLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	if err := t.Validate(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.bySession[sessionID]
	if !ok {
		return nil, false, order.ErrOrderNotFound
	}
	o := l.byID[id]
	if o.PaymentStatus.IsTerminal() {
		return o.Clone(), false, nil
	}
	if err := o.Apply(t); err != nil {
		return nil, false, err
	}
	return o.Clone(), true, nil
}

func (l *MemoryLedger) ListPending(ctx context.Context, createdBefore time.Time) ([]*order.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*order.Order
	for _, o := range l.byID {
		if o.PaymentStatus == order.StatusPending && o.CreatedAt.Before(createdBefore) {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
