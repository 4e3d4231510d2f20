package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-checkout/internal/api"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/bootstrap"
	"github.com/example/ec-checkout/internal/catalog"
	"github.com/example/ec-checkout/internal/checkout"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/payment"
)

const tokenExpiry = 15 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[API] invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("api", cfg.LogLevel)
	if err := cfg.RequireStripe(); err != nil {
		log.Error("[API] invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("[API] ========================================")
	log.Info("[API] EC Shop - Checkout")
	log.Info("[API] ========================================")
	log.Info("[API] configuration",
		"ledger", cfg.LedgerBackend,
		"cart", cfg.CartBackend,
		"currency", cfg.Currency,
		"frontend", cfg.FrontendURL,
		"kafka", cfg.KafkaBrokers,
	)
	if cfg.StripeWebhookSecret == "" {
		log.Warn("[API] STRIPE_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Error("[API] failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backends.Closers.Close(log)

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenService(cfg.JWTSecret, tokenExpiry)
	} else {
		log.Info("[API] JWT_SECRET not set, every request uses the guest cart")
	}

	deps := checkout.Deps{
		Carts:     backends.Carts,
		Gateway:   payment.NewStripeGateway(cfg.StripeSecretKey),
		Ledger:    backends.Ledger,
		Publisher: backends.Publisher,
		Deduper:   backends.Deduper,
		Logger:    log,
	}
	checkoutCfg := bootstrap.CheckoutConfig(cfg)
	products := catalog.NewDefault()

	router := api.NewRouter(api.RouterConfig{
		Checkout: api.NewCheckoutHandlers(checkout.NewService(deps, checkoutCfg), checkout.NewReconciler(deps, checkoutCfg), log),
		Cart:     api.NewCartHandlers(cart.NewService(backends.Carts, products), log),
		Catalog:  api.NewCatalogHandlers(products, log),
		Tokens:   tokens,
		Logger:   log,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("[API] server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("[API] server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("[API] shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("[API] shutdown error", "error", err)
	}
}
