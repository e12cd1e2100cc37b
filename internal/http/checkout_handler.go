package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CheckoutService interface {
	CreateOrder(ctx context.Context, guestEmail string) (*checkout.PendingOrder, error)
	Capture(ctx context.Context, providerOrderID string) (*checkout.Result, error)
	Pending() (*checkout.PendingOrder, bool)
}

type CheckoutHandler struct {
	checkout       CheckoutService
	timeout        time.Duration
	captureTimeout time.Duration
	logger         logrus.FieldLogger
}

func NewCheckoutHandler(c CheckoutService, timeout, captureTimeout time.Duration, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:       c,
		timeout:        timeout,
		captureTimeout: captureTimeout,
		logger:         logger,
	}
}

type CreateOrderRequestDTO struct {
	Email string `json:"email"`
}

type PendingOrderDTO struct {
	ProviderOrderID string          `json:"provider_order_id"`
	CartHash        string          `json:"cart_hash"`
	Email           string          `json:"email"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	CreatedAt       time.Time       `json:"created_at"`
}

func pendingDTO(p *checkout.PendingOrder) PendingOrderDTO {
	return PendingOrderDTO{
		ProviderOrderID: p.ProviderOrderID,
		CartHash:        p.CartHash,
		Email:           p.Email,
		Total:           p.Snapshot.Total,
		Currency:        p.Currency,
		CreatedAt:       p.CreatedAt,
	}
}

// POST /api/v1/checkout/orders
func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	p, err := h.checkout.CreateOrder(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
		case errors.Is(err, checkout.ErrMixedCurrency):
			respondError(w, http.StatusBadRequest, "mixed_currency", "cart holds products in more than one currency")
		case errors.Is(err, checkout.ErrEmailRequired):
			respondError(w, http.StatusBadRequest, "email_required", "an email address is required for guest checkout")
		case errors.Is(err, session.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid_email", "email address is not valid")
		default:
			h.logger.WithError(err).Warn("create payment order failed")
			handleUpstreamError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusCreated, pendingDTO(p))
}

// GET /api/v1/checkout/orders/pending
func (h *CheckoutHandler) Pending(w http.ResponseWriter, r *http.Request) {
	p, ok := h.checkout.Pending()
	if !ok {
		respondError(w, http.StatusNotFound, "no_pending_order", "no payment order is pending")
		return
	}
	respondJSON(w, http.StatusOK, pendingDTO(p))
}

// POST /api/v1/checkout/orders/{order_id}/capture
func (h *CheckoutHandler) Capture(w http.ResponseWriter, r *http.Request) {
	// the client enforces the capture timeout itself; leave it some headroom
	ctx, cancel := context.WithTimeout(r.Context(), h.captureTimeout+5*time.Second)
	defer cancel()

	res, err := h.checkout.Capture(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		var payErr *checkout.PaymentError
		switch {
		case errors.Is(err, checkout.ErrNoOrderID):
			respondError(w, http.StatusBadRequest, "invalid_order_id", "order id is required")
		case errors.As(err, &payErr):
			respondErrorDetails(w, http.StatusPaymentRequired, "payment_not_completed",
				"payment was not completed, your cart was kept", payErr.Status.String())
		case errors.Is(err, checkout.ErrCaptureOutcomeUnknown):
			respondError(w, http.StatusGatewayTimeout, "capture_outcome_unknown",
				"we could not confirm the payment; check your order history before paying again")
		default:
			handleUpstreamError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, res)
}
