package checkout

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/example/ec-checkout/internal/checkout"

// EventPublisher delivers order events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Deduper remembers webhook event ids that were already processed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Config struct {
	Currency      string
	FrontendURL   string
	WebhookSecret string
}

// SuccessURL is where the gateway sends the customer after paying; the gateway fills in the session id.
func (c Config) SuccessURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/payment-success?session_id=" + payment.SessionIDPlaceholder
}

func (c Config) CancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/payment-failed"
}

// Deps are the collaborators shared by Service and Reconciler. Publisher, Deduper,
// Logger, Meter, Tracer and Now are optional.
type Deps struct {
	Carts     cart.Store
	Gateway   payment.Gateway
	Ledger    order.Ledger
	Publisher EventPublisher
	Deduper   Deduper
	Logger    *slog.Logger
	Meter     metric.Meter
	Tracer    trace.Tracer
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Meter == nil {
		d.Meter = otel.Meter(instrumentationName)
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(instrumentationName)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Result is what the client needs to redirect to the hosted payment page.
type Result struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url"`
	OrderID     string `json:"orderId"`
}

// Service turns a cart into a gateway session and a pending order.
type Service struct {
	deps    Deps
	cfg     Config
	log     *slog.Logger
	metrics *metrics
}

func NewService(deps Deps, cfg Config) *Service {
	deps = deps.withDefaults()
	return &Service{
		deps:    deps,
		cfg:     cfg,
		log:     deps.Logger.With("component", "checkout"),
		metrics: newMetrics(deps.Meter, deps.Logger),
	}
}

// ToMinorUnits converts a price to the smallest currency unit, rounded to the nearest integer.
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// OwnerOf returns the order owner for a cart identity; guests own nothing.
func OwnerOf(identity string) string {
	if identity == cart.Guest {
		return ""
	}
	return identity
}

// BeginCheckout opens a hosted payment session for the identity's cart and records a pending order.
// The cart is left intact; it is cleared only once payment is confirmed.
func (s *Service) BeginCheckout(ctx context.Context, identity, email string) (result *Result, err error) {
	ctx, span := s.deps.Tracer.Start(ctx, "checkout.BeginCheckout")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if identity == "" {
		identity = cart.Guest
	}
	email = order.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Wrap(apperr.KindValidation, order.ErrEmailRequired)
	}

	lines, err := s.deps.Carts.Get(ctx, identity)
	if err != nil {
		return nil, apperr.Persistence("failed to load cart", err)
	}
	if len(lines) == 0 {
		return nil, apperr.Validation("empty cart")
	}

	items := make([]order.Item, 0, len(lines))
	lineItems := make([]payment.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, order.Item{
			ProductRef: line.ProductID,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
		})
		lineItems = append(lineItems, payment.LineItem{
			Name:       line.Name,
			Image:      line.Image,
			UnitAmount: ToMinorUnits(line.UnitPrice),
			Quantity:   int64(line.Quantity),
		})
	}
	if err := order.ValidateItems(items); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err)
	}

	session, err := s.deps.Gateway.CreateSession(ctx, payment.SessionRequest{
		Currency:      s.cfg.Currency,
		LineItems:     lineItems,
		CustomerEmail: email,
		SuccessURL:    s.cfg.SuccessURL(),
		CancelURL:     s.cfg.CancelURL(),
		Metadata: map[string]string{
			payment.MetadataIdentity: identity,
			payment.MetadataEmail:    email,
		},
	})
	if err != nil {
		s.log.Error("failed to create payment session", "identity", identity, "error", err)
		return nil, apperr.Gateway("failed to create payment session", err)
	}
	span.SetAttributes(attribute.String("checkout.session_id", session.ID))

	o, err := order.New(order.Draft{
		OwnerID:         OwnerOf(identity),
		Email:           email,
		Items:           items,
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
	}, s.deps.Now())
	if err != nil {
		return nil, apperr.Gateway("payment session is unusable", err)
	}

	created, err := s.deps.Ledger.Create(ctx, o)
	if err != nil {
		s.metrics.orphanedSessions.Add(ctx, 1)
		s.log.Error("orphaned payment session: order was not persisted",
			"session_id", session.ID,
			"identity", identity,
			"email", email,
			"total_amount", o.TotalAmount.StringFixed(2),
			"error", err,
		)
		return nil, apperr.Persistence("failed to save order", err)
	}

	s.log.Info("checkout session created",
		"order_id", created.ID,
		"session_id", created.SessionID,
		"total_amount", created.TotalAmount.StringFixed(2),
	)
	publishEvent(ctx, s.log, s.deps.Publisher, created, order.EventOrderPlaced, order.PlacedEvent(created), s.deps.Now())

	return &Result{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		OrderID:     created.ID,
	}, nil
}

// publishEvent wraps data in an envelope keyed by order id. Failures are logged only.
func publishEvent(ctx context.Context, log *slog.Logger, pub EventPublisher, o *order.Order, eventType string, data any, at time.Time) {
	if pub == nil {
		return
	}
	env, err := order.NewEventEnvelope(o, eventType, data, at)
	if err != nil {
		log.Error("failed to build order event", "event_type", eventType, "order_id", o.ID, "error", err)
		return
	}
	if err := pub.Publish(ctx, o.ID, env); err != nil {
		log.Warn("failed to publish order event", "event_type", eventType, "order_id", o.ID, "error", err)
	}
}
