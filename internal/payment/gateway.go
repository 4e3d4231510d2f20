package payment

import (
	"context"
	"errors"
)

// SessionIDPlaceholder is replaced by the gateway with the new session's id in redirect URLs.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidSignature    = errors.New("webhook signature verification failed")
)

type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

type EventType string

const (
	EventSessionCompleted             EventType = "checkout.session.completed"
	EventSessionAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventSessionAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"
	EventSessionExpired               EventType = "checkout.session.expired"
)

// Metadata keys attached to every session for later correlation.
const (
	MetadataIdentity = "userId"
	MetadataEmail    = "email"
)

// LineItem is one hosted-checkout line; UnitAmount is in the smallest currency unit.
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	Currency      string
	LineItems     []LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Session struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentIntentID string            `json:"payment_intent"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
}

// Identity returns the cart identity recorded at session creation.
func (s Session) Identity() string {
	return s.Metadata[MetadataIdentity]
}

// Event is a verified webhook notification about a checkout session.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Session Session   `json:"session"`
}

// Gateway is the narrow slice of the payment processor used by checkout.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	VerifyWebhook(payload []byte, signature, secret string) (*Event, error)
}
