package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/ec-checkout/internal/payment"
)

// ValidSignature is the only signature MockGateway accepts.
const ValidSignature = "t=1,v1=valid"

// MockGateway is a payment.Gateway backed by an in-memory session table.
type MockGateway struct {
	mu       sync.Mutex
	sessions map[string]*payment.Session
	next     int

	CreateErr   error
	RetrieveErr error

	CreateCalls   []payment.SessionRequest
	RetrieveCalls []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]*payment.Session)}
}

func (m *MockGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, req)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.next++
	id := fmt.Sprintf("cs_test_%d", m.next)
	s := &payment.Session{
		ID:            id,
		URL:           "https://checkout.example.com/pay/" + id,
		PaymentStatus: payment.PaymentStatusUnpaid,
		Metadata:      req.Metadata,
	}
	m.sessions[id] = s
	c := *s
	return &c, nil
}

func (m *MockGateway) RetrieveSession(ctx context.Context, id string) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RetrieveCalls = append(m.RetrieveCalls, id)
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session: " + id)
	}
	c := *s
	return &c, nil
}

// MarkPaid simulates the customer completing payment.
func (m *MockGateway) MarkPaid(id, paymentIntentID string) {
	m.SetSession(payment.Session{ID: id, PaymentIntentID: paymentIntentID, PaymentStatus: payment.PaymentStatusPaid})
}

// SetSession overwrites the state the gateway reports for a session.
func (m *MockGateway) SetSession(s payment.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[s.ID]; ok && s.Metadata == nil {
		s.Metadata = existing.Metadata
		s.URL = existing.URL
	}
	m.sessions[s.ID] = &s
}

// VerifyWebhook accepts ValidSignature and decodes payload as a payment.Event.
func (m *MockGateway) VerifyWebhook(payload []byte, signature, secret string) (*payment.Event, error) {
	if secret == "" {
		return nil, payment.ErrSecretNotConfigured
	}
	if signature != ValidSignature {
		return nil, payment.ErrInvalidSignature
	}
	var ev payment.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}
	return &ev, nil
}

// RetrieveCount returns how many times RetrieveSession was called.
func (m *MockGateway) RetrieveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RetrieveCalls)
}
