package mocks

import (
	"context"
	"sync"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu         sync.Mutex
	PublishErr error
	Published  []PublishCall
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Published = append(m.Published, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// Calls returns a snapshot of recorded calls.
func (m *MockPublisher) Calls() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishCall(nil), m.Published...)
}
