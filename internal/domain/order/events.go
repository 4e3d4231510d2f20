package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced           = "OrderPlaced"
	EventOrderPaymentSucceeded = "OrderPaymentSucceeded"
	EventOrderPaymentFailed    = "OrderPaymentFailed"
)

// EventEnvelope is the message published for every ledger write.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	SessionID   string          `json:"session_id"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Email       string          `json:"email"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlacedAt    time.Time       `json:"placed_at"`
}

type OrderPaymentSucceeded struct {
	OrderID         string          `json:"order_id"`
	SessionID       string          `json:"session_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Email           string          `json:"email"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Source          string          `json:"source"`
	PaidAt          time.Time       `json:"paid_at"`
}

type OrderPaymentFailed struct {
	OrderID   string    `json:"order_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

// NewEventEnvelope wraps data for the order o.
func NewEventEnvelope(o *Order, eventType string, data any, at time.Time) (EventEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:            uuid.New().String(),
		AggregateID:   o.ID,
		AggregateType: AggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     at,
	}, nil
}

func PlacedEvent(o *Order) OrderPlaced {
	return OrderPlaced{
		OrderID:     o.ID,
		SessionID:   o.SessionID,
		OwnerID:     o.OwnerID,
		Email:       o.Email,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		PlacedAt:    o.CreatedAt,
	}
}

func PaymentSucceededEvent(o *Order, source string) OrderPaymentSucceeded {
	return OrderPaymentSucceeded{
		OrderID:         o.ID,
		SessionID:       o.SessionID,
		PaymentIntentID: o.PaymentIntentID,
		Email:           o.Email,
		Items:           o.Items,
		TotalAmount:     o.TotalAmount,
		Source:          source,
		PaidAt:          o.UpdatedAt,
	}
}

func PaymentFailedEvent(o *Order, reason string) OrderPaymentFailed {
	return OrderPaymentFailed{
		OrderID:   o.ID,
		SessionID: o.SessionID,
		Reason:    reason,
		FailedAt:  o.UpdatedAt,
	}
}
