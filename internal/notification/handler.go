package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/email"
	"github.com/shopspring/decimal"
)

type Mailer interface {
	SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []email.OrderItem) error
}

// Handler sends the confirmation e-mail once an order's payment succeeds.
type Handler struct {
	mailer Mailer
	log    *slog.Logger
}

func NewHandler(mailer Mailer, log *slog.Logger) *Handler {
	return &Handler{mailer: mailer, log: log.With("component", "notifier")}
}

// HandleEvent processes one order event from Kafka. Other event types are skipped.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env order.EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}
	if env.AggregateType != order.AggregateType || env.EventType != order.EventOrderPaymentSucceeded {
		return nil
	}

	var e order.OrderPaymentSucceeded
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return fmt.Errorf("decode %s: %w", env.EventType, err)
	}
	log := h.log.With("order_id", e.OrderID, "session_id", e.SessionID, "event_id", env.ID)

	if e.Email == "" {
		log.Warn("order has no contact email, skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductRef,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	if err := h.mailer.SendOrderConfirmation(e.Email, e.OrderID, e.TotalAmount, items); err != nil {
		log.Error("failed to send order confirmation", "error", err)
		return err
	}
	log.Info("order confirmation email sent", "to", e.Email)
	return nil
}
