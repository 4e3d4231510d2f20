package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Checkout       *CheckoutHandlers
	Cart           *CartHandlers
	Catalog        *CatalogHandlers
	Tokens         *auth.TokenService
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The webhook is authenticated by its signature, not by a user token.
		r.Post("/checkout/webhook", cfg.Checkout.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Tokens))

			r.Get("/products", cfg.Catalog.ListProducts)
			r.Get("/products/{id}", cfg.Catalog.GetProduct)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Post("/add", cfg.Cart.AddToCart)
				r.Delete("/remove/{productId}", cfg.Cart.RemoveFromCart)
				r.Patch("/update/{productId}", cfg.Cart.UpdateCartItem)
				r.Delete("/clear", cfg.Cart.ClearCart)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/create-session", cfg.Checkout.CreateSession)
				r.Post("/update-order", cfg.Checkout.UpdateOrder)
				r.Get("/order-status/{sessionId}", cfg.Checkout.OrderStatus)
			})
		})
	})

	return r
}
