package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/payment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Signal sources recorded on transitions and events.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Reconciler applies payment outcomes from the webhook and the client poll to the ledger.
// Both paths go through Ledger.Transition, which only moves a pending order, so the
// signals may arrive in any order and any number of times.
type Reconciler struct {
	deps    Deps
	cfg     Config
	log     *slog.Logger
	metrics *metrics
	polls   singleflight.Group
}

func NewReconciler(deps Deps, cfg Config) *Reconciler {
	deps = deps.withDefaults()
	return &Reconciler{
		deps:    deps,
		cfg:     cfg,
		log:     deps.Logger.With("component", "reconciler"),
		metrics: newMetrics(deps.Meter, deps.Logger),
	}
}

// HandleWebhook verifies and applies a gateway notification. Unknown sessions and
// event types are acknowledged; only verification and ledger failures return an error.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	ctx, span := r.deps.Tracer.Start(ctx, "checkout.HandleWebhook")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	switch {
	case r.cfg.WebhookSecret == "":
		return r.reject(ctx, apperr.Authenticity("webhook secret not configured", payment.ErrSecretNotConfigured))
	case signature == "":
		return r.reject(ctx, apperr.Authenticity("missing webhook signature", payment.ErrInvalidSignature))
	}

	ev, err := r.deps.Gateway.VerifyWebhook(payload, signature, r.cfg.WebhookSecret)
	if err != nil {
		return r.reject(ctx, apperr.Authenticity("webhook signature verification failed", err))
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", ev.ID),
		attribute.String("webhook.event_type", string(ev.Type)),
	)

	if r.deps.Deduper != nil && ev.ID != "" {
		seen, err := r.deps.Deduper.Seen(ctx, ev.ID)
		switch {
		case err != nil:
			// transitions are idempotent, so a dedupe outage only costs extra work
			r.log.Warn("webhook dedupe check failed", "event_id", ev.ID, "error", err)
		case seen:
			r.log.Info("duplicate webhook delivery skipped", "event_id", ev.ID, "event_type", ev.Type)
			return nil
		}
	}

	if err := r.dispatch(ctx, ev); err != nil {
		if r.deps.Deduper != nil && ev.ID != "" {
			// the request ctx may be the reason dispatch failed; the mark must still go
			if ferr := r.deps.Deduper.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
				r.log.Warn("failed to release webhook dedupe mark", "event_id", ev.ID, "error", ferr)
			}
		}
		return err
	}
	return nil
}

func (r *Reconciler) reject(ctx context.Context, err error) error {
	r.metrics.webhookRejected.Add(ctx, 1)
	r.log.Warn("webhook rejected", "error", err)
	return err
}

func (r *Reconciler) dispatch(ctx context.Context, ev *payment.Event) error {
	var err error
	switch ev.Type {
	case payment.EventSessionCompleted, payment.EventSessionAsyncPaymentSucceeded:
		_, err = r.confirmSuccess(ctx, ev.Session.ID, ev.Session.PaymentIntentID, ev.Session.Identity(), SourceWebhook)
	case payment.EventSessionAsyncPaymentFailed, payment.EventSessionExpired:
		err = r.confirmFailure(ctx, ev.Session.ID, string(ev.Type))
	default:
		r.log.Debug("webhook event ignored", "event_id", ev.ID, "event_type", ev.Type)
		return nil
	}

	if errors.Is(err, order.ErrOrderNotFound) {
		r.metrics.unmatchedSessions.Add(ctx, 1)
		r.log.Warn("webhook references a session with no order",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"session_id", ev.Session.ID,
		)
		return nil
	}
	if err != nil {
		return apperr.Persistence("failed to apply payment outcome", err)
	}
	return nil
}

// ConfirmByPolling asks the gateway for the live session state and records a confirmed
// payment. It never marks an order failed: an unpaid session only means "not yet".
// A session whose order already failed is reported as incomplete.
// Concurrent polls for one session share a single gateway round trip, detached from
// the cancellation of whichever caller started it.
func (r *Reconciler) ConfirmByPolling(ctx context.Context, sessionID string) (*order.Order, error) {
	if sessionID == "" {
		return nil, apperr.Wrap(apperr.KindValidation, order.ErrSessionRequired)
	}
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.polls.Do(sessionID, func() (any, error) {
		return r.confirmByPolling(shared, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*order.Order).Clone(), nil
}

func (r *Reconciler) confirmByPolling(ctx context.Context, sessionID string) (o *order.Order, err error) {
	ctx, span := r.deps.Tracer.Start(ctx, "checkout.ConfirmByPolling")
	span.SetAttributes(attribute.String("checkout.session_id", sessionID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	current, err := r.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch current.PaymentStatus {
	case order.StatusSuccessful:
		r.metrics.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("source", SourcePoll)))
		return current, nil
	case order.StatusFailed:
		return nil, paymentFailed(current)
	}

	session, err := r.deps.Gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Gateway("failed to retrieve payment session", err)
	}
	if session.PaymentStatus != payment.PaymentStatusPaid {
		return nil, apperr.PaymentIncomplete(fmt.Sprintf("payment not completed (status: %s)", session.PaymentStatus))
	}

	o, err = r.confirmSuccess(ctx, sessionID, session.PaymentIntentID, session.Identity(), SourcePoll)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err)
	}
	if err != nil {
		return nil, apperr.Persistence("failed to apply payment outcome", err)
	}
	if o.PaymentStatus != order.StatusSuccessful {
		// a failure signal won the race for this order
		return nil, paymentFailed(o)
	}
	return o, nil
}

func paymentFailed(o *order.Order) error {
	return apperr.PaymentIncomplete(fmt.Sprintf("payment not completed (status: %s)", o.PaymentStatus))
}

// GetBySession returns the order for a gateway session.
func (r *Reconciler) GetBySession(ctx context.Context, sessionID string) (*order.Order, error) {
	if sessionID == "" {
		return nil, apperr.Wrap(apperr.KindValidation, order.ErrSessionRequired)
	}
	o, err := r.deps.Ledger.FindBySessionID(ctx, sessionID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err)
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load order", err)
	}
	return o, nil
}

// confirmSuccess moves the order to successful. The cart is cleared and the event
// published only by the call that actually applied the transition.
func (r *Reconciler) confirmSuccess(ctx context.Context, sessionID, paymentIntentID, identity, source string) (*order.Order, error) {
	o, applied, err := r.transition(ctx, sessionID, order.Transition{
		To:              order.StatusSuccessful,
		PaymentIntentID: paymentIntentID,
		At:              r.deps.Now(),
	}, source)
	if err != nil || !applied {
		return o, err
	}

	r.clearCart(ctx, cartIdentity(identity, o), o)
	publishEvent(ctx, r.log, r.deps.Publisher, o, order.EventOrderPaymentSucceeded, order.PaymentSucceededEvent(o, source), r.deps.Now())
	return o, nil
}

func (r *Reconciler) confirmFailure(ctx context.Context, sessionID, reason string) error {
	o, applied, err := r.transition(ctx, sessionID, order.Transition{
		To: order.StatusFailed,
		At: r.deps.Now(),
	}, SourceWebhook)
	if err != nil || !applied {
		return err
	}
	publishEvent(ctx, r.log, r.deps.Publisher, o, order.EventOrderPaymentFailed, order.PaymentFailedEvent(o, reason), r.deps.Now())
	return nil
}

func (r *Reconciler) transition(ctx context.Context, sessionID string, t order.Transition, source string) (*order.Order, bool, error) {
	o, applied, err := r.deps.Ledger.Transition(ctx, sessionID, t)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		r.metrics.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
		r.log.Info("payment signal ignored: order already final",
			"order_id", o.ID,
			"session_id", sessionID,
			"status", o.PaymentStatus,
			"requested", t.To,
			"source", source,
		)
		return o, false, nil
	}

	r.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(o.PaymentStatus)),
		attribute.String("source", source),
	))
	r.log.Info("order payment status updated",
		"order_id", o.ID,
		"session_id", sessionID,
		"status", o.PaymentStatus,
		"payment_intent_id", o.PaymentIntentID,
		"source", source,
	)
	return o, true, nil
}

// clearCart runs after the order is final. A failure leaves a stale cart but the
// payment outcome is already durable, so it is logged and not returned.
func (r *Reconciler) clearCart(ctx context.Context, identity string, o *order.Order) {
	if err := r.deps.Carts.Clear(ctx, identity); err != nil {
		r.log.Error("failed to clear cart after payment",
			"identity", identity,
			"order_id", o.ID,
			"error", err,
		)
	}
}

// cartIdentity prefers the identity recorded in session metadata and falls back to the order owner.
func cartIdentity(fromMetadata string, o *order.Order) string {
	if fromMetadata != "" {
		return fromMetadata
	}
	if o.OwnerID != "" {
		return o.OwnerID
	}
	return cart.Guest
}
