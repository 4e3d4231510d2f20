package api

import (
	"log/slog"
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/go-chi/chi/v5"
)

type CartHandlers struct {
	carts *cart.Service
	log   *slog.Logger
}

func NewCartHandlers(carts *cart.Service, log *slog.Logger) *CartHandlers {
	return &CartHandlers{carts: carts, log: log.With("component", "cart-http")}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	summary, err := h.carts.Get(r.Context(), middleware.Identity(r.Context()))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, summary, "Cart retrieved successfully")
}

func (h *CartHandlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	lines, err := h.carts.Add(r.Context(), middleware.Identity(r.Context()), req.ProductID, quantity)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, cart.Summarize(lines), "Item added to cart")
}

func (h *CartHandlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.carts.Remove(r.Context(), middleware.Identity(r.Context()), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, cart.Summarize(lines), "Item removed from cart")
}

func (h *CartHandlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	lines, err := h.carts.Update(r.Context(), middleware.Identity(r.Context()), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, cart.Summarize(lines), "Cart updated")
}

func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), middleware.Identity(r.Context())); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, cart.Summarize(nil), "Cart cleared")
}
