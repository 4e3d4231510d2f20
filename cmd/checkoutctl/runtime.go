package main

import (
	"context"
	"os"
	"time"

	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/bootstrap"
	"github.com/example/ec-checkout/internal/checkout"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/payment"
)

// runtime is what the ledger commands operate on.
type runtime struct {
	ledger     order.Ledger
	reconciler *checkout.Reconciler
	now        func() time.Time
	close      func()
}

type runtimeOpener func(ctx context.Context) (*runtime, error)

type tokenOpener func() (*auth.TokenService, error)

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireStripe(); err != nil {
		return nil, err
	}
	// Logs go to stderr so stdout stays machine readable.
	log := logging.NewWithWriter(os.Stderr, "checkoutctl", cfg.LogLevel)

	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := checkout.Deps{
		Carts:     backends.Carts,
		Gateway:   payment.NewStripeGateway(cfg.StripeSecretKey),
		Ledger:    backends.Ledger,
		Publisher: backends.Publisher,
		Logger:    log,
	}
	return &runtime{
		ledger:     backends.Ledger,
		reconciler: checkout.NewReconciler(deps, bootstrap.CheckoutConfig(cfg)),
		now:        time.Now,
		close:      func() { backends.Closers.Close(log) },
	}, nil
}

func openTokens() (*auth.TokenService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, errJWTSecretRequired
	}
	return auth.NewTokenService(cfg.JWTSecret, 15*time.Minute), nil
}

