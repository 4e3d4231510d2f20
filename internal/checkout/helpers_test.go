package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store/mocks"
	"github.com/example/ec-checkout/internal/payment"
	paymentmocks "github.com/example/ec-checkout/internal/payment/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

type testEnv struct {
	carts     *mocks.MockCartStore
	gateway   *paymentmocks.MockGateway
	ledger    *mocks.MockLedger
	publisher *mocks.MockPublisher
	deduper   *fakeDeduper
	logs      *bytes.Buffer
	deps      Deps
	cfg       Config
	svc       *Service
	rec       *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		carts:     mocks.NewMockCartStore(),
		gateway:   paymentmocks.NewMockGateway(),
		ledger:    mocks.NewMockLedger(),
		publisher: mocks.NewMockPublisher(),
		deduper:   newFakeDeduper(),
		logs:      &bytes.Buffer{},
	}
	deps := Deps{
		Carts:     env.carts,
		Gateway:   env.gateway,
		Ledger:    env.ledger,
		Publisher: env.publisher,
		Deduper:   env.deduper,
		Logger:    slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	cfg := Config{
		Currency:      "usd",
		FrontendURL:   "http://localhost:3000",
		WebhookSecret: testWebhookSecret,
	}
	env.deps, env.cfg = deps, cfg
	env.svc = NewService(deps, cfg)
	env.rec = NewReconciler(deps, cfg)
	return env
}

// reconcilerWith builds a Reconciler over the same carts and gateway with a different
// ledger and deduper.
func (e *testEnv) reconcilerWith(ledger order.Ledger, deduper Deduper) *Reconciler {
	deps := e.deps
	deps.Ledger = ledger
	deps.Deduper = deduper
	return NewReconciler(deps, e.cfg)
}

// ctxLedger fails any call whose context is already done, the way a network-backed
// ledger does. With cancel set, the first Transition cancels the caller's context
// before checking it.
type ctxLedger struct {
	*mocks.MockLedger
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (l *ctxLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.MockLedger.FindBySessionID(ctx, sessionID)
}

func (l *ctxLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return l.MockLedger.Transition(ctx, sessionID, t)
}

func headphones(qty int) cart.Line {
	return cart.Line{
		ProductID: "1",
		Name:      "Wireless Headphones",
		UnitPrice: decimal.RequireFromString("99.99"),
		Image:     "https://example.com/headphones.jpg",
		Quantity:  qty,
	}
}

// checkout seeds the guest cart and begins checkout, returning the session id.
func (e *testEnv) checkout(t *testing.T, identity string, lines ...cart.Line) *Result {
	t.Helper()
	e.carts.Seed(identity, lines)
	res, err := e.svc.BeginCheckout(context.Background(), identity, "a@b.com")
	require.NoError(t, err)
	return res
}

func webhookPayload(t *testing.T, eventID string, eventType payment.EventType, sessionID, paymentIntentID, identity string) []byte {
	t.Helper()
	ev := payment.Event{
		ID:   eventID,
		Type: eventType,
		Session: payment.Session{
			ID:              sessionID,
			PaymentIntentID: paymentIntentID,
			PaymentStatus:   payment.PaymentStatusPaid,
			Metadata:        map[string]string{},
		},
	}
	if identity != "" {
		ev.Session.Metadata[payment.MetadataIdentity] = identity
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

// fakeDeduper is an in-memory Deduper.
type fakeDeduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	SeenErr   error
	Forgotten []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]time.Time)}
}

func (d *fakeDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.SeenErr != nil {
		return false, d.SeenErr
	}
	if _, ok := d.seen[eventID]; ok {
		return true, nil
	}
	d.seen[eventID] = time.Now()
	return false, nil
}

func (d *fakeDeduper) Forget(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, eventID)
	d.Forgotten = append(d.Forgotten, eventID)
	return nil
}

// staleReadLedger reports every order as still pending on read.
type staleReadLedger struct {
	*mocks.MockLedger
}

func (l *staleReadLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	o, err := l.MockLedger.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = order.StatusPending
	return o, nil
}
