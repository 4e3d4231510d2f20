package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDraft() Draft {
	return Draft{
		OwnerID: "user-123",
		Email:   "  A@B.com ",
		Items: []Item{
			{ProductRef: "1", Name: "Wireless Headphones", UnitPrice: price("99.99"), Quantity: 1},
		},
		SessionID: "cs_test_123",
	}
}

// ============================================
// New Order Tests
// ============================================

func TestNew_Success(t *testing.T) {
	now := time.Now()

	o, err := New(newTestDraft(), now)

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "a@b.com", o.Email)
	assert.Equal(t, "user-123", o.OwnerID)
	assert.True(t, price("99.99").Equal(o.TotalAmount))
	assert.Equal(t, StatusPending, o.PaymentStatus)
	assert.Equal(t, PendingPaymentRef, o.PaymentIntentID)
	assert.Equal(t, "cs_test_123", o.SessionID)
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestNew_UsesKnownPaymentIntent(t *testing.T) {
	d := newTestDraft()
	d.PaymentIntentID = "pi_123"

	o, err := New(d, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "pi_123", o.PaymentIntentID)
}

func TestNew_TotalOfMultipleItems(t *testing.T) {
	d := newTestDraft()
	d.Items = []Item{
		{ProductRef: "1", UnitPrice: price("99.99"), Quantity: 2},
		{ProductRef: "4", UnitPrice: price("24.99"), Quantity: 3},
	}

	o, err := New(d, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "274.95", o.TotalAmount.StringFixed(2)) // 2*99.99 + 3*24.99
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Draft)
		want   error
	}{
		{"missing email", func(d *Draft) { d.Email = "   " }, ErrEmailRequired},
		{"missing session", func(d *Draft) { d.SessionID = "" }, ErrSessionRequired},
		{"no items", func(d *Draft) { d.Items = nil }, ErrEmptyOrder},
		{"zero quantity", func(d *Draft) { d.Items[0].Quantity = 0 }, ErrInvalidQuantity},
		{"negative price", func(d *Draft) { d.Items[0].UnitPrice = price("-1") }, ErrNegativePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDraft()
			tt.mutate(&d)

			o, err := New(d, time.Now())

			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, o)
		})
	}
}

func TestNew_SnapshotsItems(t *testing.T) {
	d := newTestDraft()
	o, err := New(d, time.Now())
	require.NoError(t, err)

	// Later catalog price changes must not reach the placed order.
	d.Items[0].UnitPrice = price("149.99")

	assert.True(t, price("99.99").Equal(o.Items[0].UnitPrice))
	assert.True(t, price("99.99").Equal(o.TotalAmount))
}

// ============================================
// Transition Tests
// ============================================

func TestApply_PendingToSuccessful(t *testing.T) {
	o, err := New(newTestDraft(), time.Now())
	require.NoError(t, err)
	at := time.Now().Add(time.Minute)

	err = o.Apply(Transition{To: StatusSuccessful, PaymentIntentID: "pi_real", At: at})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccessful, o.PaymentStatus)
	assert.Equal(t, "pi_real", o.PaymentIntentID)
	assert.Equal(t, at, o.UpdatedAt)
}

func TestApply_PendingToFailedKeepsPaymentRef(t *testing.T) {
	o, err := New(newTestDraft(), time.Now())
	require.NoError(t, err)

	err = o.Apply(Transition{To: StatusFailed, At: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, o.PaymentStatus)
	assert.Equal(t, PendingPaymentRef, o.PaymentIntentID)
}

func TestApply_TerminalStatesAreImmutable(t *testing.T) {
	for _, terminal := range []Status{StatusSuccessful, StatusFailed} {
		for _, target := range []Status{StatusSuccessful, StatusFailed, StatusPending} {
			t.Run(string(terminal)+"->"+string(target), func(t *testing.T) {
				o, err := New(newTestDraft(), time.Now())
				require.NoError(t, err)
				require.NoError(t, o.Apply(Transition{To: terminal, PaymentIntentID: "pi_first", At: time.Now()}))
				before := o.Clone()

				err = o.Apply(Transition{To: target, PaymentIntentID: "pi_second", At: time.Now()})

				assert.ErrorIs(t, err, ErrTerminalState)
				assert.Equal(t, before, o)
			})
		}
	}
}

func TestApply_PendingToPendingIsInvalid(t *testing.T) {
	o, err := New(newTestDraft(), time.Now())
	require.NoError(t, err)

	err = o.Apply(Transition{To: StatusPending, At: time.Now()})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_Validate(t *testing.T) {
	assert.NoError(t, Transition{To: StatusSuccessful}.Validate())
	assert.NoError(t, Transition{To: StatusFailed}.Validate())
	assert.ErrorIs(t, Transition{To: StatusPending}.Validate(), ErrInvalidTransition)
	assert.ErrorIs(t, Transition{To: Status("refunded")}.Validate(), ErrInvalidTransition)
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSuccessful.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestClone_DoesNotShareItems(t *testing.T) {
	o, err := New(newTestDraft(), time.Now())
	require.NoError(t, err)
	o.ShippingAddress = &ShippingAddress{City: "Berlin"}

	c := o.Clone()
	c.Items[0].Quantity = 5
	c.ShippingAddress.City = "Paris"

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "Berlin", o.ShippingAddress.City)
}

// ============================================
// Event Tests
// ============================================

func TestNewEventEnvelope(t *testing.T) {
	o, err := New(newTestDraft(), time.Now())
	require.NoError(t, err)
	at := time.Now()

	env, err := NewEventEnvelope(o, EventOrderPlaced, PlacedEvent(o), at)

	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, o.ID, env.AggregateID)
	assert.Equal(t, AggregateType, env.AggregateType)
	assert.Equal(t, EventOrderPlaced, env.EventType)
	assert.Equal(t, at, env.Timestamp)

	var placed OrderPlaced
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.Equal(t, o.SessionID, placed.SessionID)
	assert.True(t, o.TotalAmount.Equal(placed.TotalAmount))
}
