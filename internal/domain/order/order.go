package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

// PendingPaymentRef stands in for the payment intent id until the gateway reports one.
const PendingPaymentRef = "pending"

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
	ErrNegativePrice     = errors.New("unit price must not be negative")
	ErrEmailRequired     = errors.New("email is required")
	ErrSessionRequired   = errors.New("external session id is required")
	ErrDuplicateSession  = errors.New("an order already exists for this session")
	ErrTerminalState     = errors.New("order payment status is already final")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

// validTransitions defines allowed payment status transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusSuccessful, StatusFailed},
	StatusSuccessful: {}, // terminal state
	StatusFailed:     {}, // terminal state
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// Item is a cart line frozen at checkout time.
type Item struct {
	ProductRef string          `json:"product"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Order struct {
	ID              string           `json:"_id"`
	OwnerID         string           `json:"user,omitempty"`
	Email           string           `json:"email"`
	Items           []Item           `json:"items"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	PaymentStatus   Status           `json:"paymentStatus"`
	PaymentIntentID string           `json:"stripePaymentIntentId"`
	SessionID       string           `json:"stripeSessionId"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Draft carries everything needed to place a pending order.
type Draft struct {
	OwnerID         string
	Email           string
	Items           []Item
	SessionID       string
	PaymentIntentID string
}

// NormalizeEmail lowercases and trims a contact address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TotalOf sums unit price times quantity over items.
func TotalOf(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateItems rejects empty orders, non-positive quantities and negative prices.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductRef)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: product %s", ErrNegativePrice, item.ProductRef)
		}
	}
	return nil
}

// New builds a pending order from a draft. The total is computed here and never again.
func New(d Draft, now time.Time) (*Order, error) {
	email := NormalizeEmail(d.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if d.SessionID == "" {
		return nil, ErrSessionRequired
	}
	if err := ValidateItems(d.Items); err != nil {
		return nil, err
	}

	items := make([]Item, len(d.Items))
	copy(items, d.Items)

	paymentRef := d.PaymentIntentID
	if paymentRef == "" {
		paymentRef = PendingPaymentRef
	}

	return &Order{
		ID:              uuid.New().String(),
		OwnerID:         d.OwnerID,
		Email:           email,
		Items:           items,
		TotalAmount:     TotalOf(items),
		PaymentStatus:   StatusPending,
		PaymentIntentID: paymentRef,
		SessionID:       d.SessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo checks if the order can move to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.PaymentStatus] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition is the only mutation a placed order accepts.
type Transition struct {
	To              Status
	PaymentIntentID string
	At              time.Time
}

// Validate rejects targets that no pending order may move to.
func (t Transition) Validate() error {
	if !(&Order{PaymentStatus: StatusPending}).CanTransitionTo(t.To) {
		return fmt.Errorf("%w: target %q", ErrInvalidTransition, t.To)
	}
	return nil
}

// Apply moves the order to t.To. A terminal order returns ErrTerminalState and is left untouched.
func (o *Order) Apply(t Transition) error {
	if o.PaymentStatus.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, o.PaymentStatus)
	}
	if !o.CanTransitionTo(t.To) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.PaymentStatus, t.To)
	}
	o.PaymentStatus = t.To
	if t.PaymentIntentID != "" {
		o.PaymentIntentID = t.PaymentIntentID
	}
	o.UpdatedAt = t.At
	return nil
}

// Clone returns a deep copy so callers never share item slices with a store.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]Item, len(o.Items))
	copy(c.Items, o.Items)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		c.ShippingAddress = &addr
	}
	return &c
}
