package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/apperr"
	"github.com/example/ec-checkout/internal/checkout"
	"github.com/go-chi/chi/v5"
)

// maxWebhookBytes bounds the raw body read for signature verification.
const maxWebhookBytes = 64 << 10

type CheckoutHandlers struct {
	checkout   *checkout.Service
	reconciler *checkout.Reconciler
	log        *slog.Logger
}

func NewCheckoutHandlers(svc *checkout.Service, reconciler *checkout.Reconciler, log *slog.Logger) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout:   svc,
		reconciler: reconciler,
		log:        log.With("component", "checkout-http"),
	}
}

type createSessionRequest struct {
	Email string `json:"email"`
}

type updateOrderRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *CheckoutHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	res, err := h.checkout.BeginCheckout(r.Context(), middleware.Identity(r.Context()), req.Email)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, res, "Checkout session created")
}

// Webhook must see the body exactly as sent; it is never decoded before verification.
func (h *CheckoutHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, h.log, apperr.Validation("webhook payload too large"))
			return
		}
		respondError(w, h.log, apperr.Validation("failed to read webhook payload"))
		return
	}

	if err := h.reconciler.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// UpdateOrder is the client-driven poll after returning from the payment page.
func (h *CheckoutHandlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	o, err := h.reconciler.ConfirmByPolling(r.Context(), req.SessionID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, o, "Order updated successfully")
}

func (h *CheckoutHandlers) OrderStatus(w http.ResponseWriter, r *http.Request) {
	o, err := h.reconciler.GetBySession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, o, "Order status retrieved")
}
