package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Capture finalizes an approved provider order. Only a COMPLETED capture takes the
// paid lines out of the cart; every other outcome leaves it for a retry.
//
// An order created for an older cart state is still captured, since the provider
// already approved it, and is recorded with the lines it was created for. Lines
// added after it was created stay in the cart.
func (f *Flow) Capture(ctx context.Context, providerOrderID string) (*Result, error) {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return nil, ErrNoOrderID
	}
	log := f.logger.WithField("provider_order_id", providerOrderID)

	pending, known := f.lookup(providerOrderID)

	resp, err := f.payments.CapturePaymentOrder(ctx, providerOrderID)
	if err != nil {
		if outcomeUnknown(err) {
			f.record("capture", "unknown")
			log.WithError(err).Error("capture outcome unknown, cart kept")
			return nil, fmt.Errorf("%w: %v", ErrCaptureOutcomeUnknown, err)
		}
		f.record("capture", "failed")
		log.WithError(err).Warn("capture rejected")
		return nil, fmt.Errorf("capture payment order: %w", err)
	}

	if !resp.Status.IsCompleted() {
		f.record("capture", "not_completed")
		log.WithField("status", resp.Status.String()).Warn("capture not completed, cart kept")
		return nil, &PaymentError{ProviderOrderID: providerOrderID, Status: resp.Status}
	}

	// Only the lines the order was created for are paid; anything added since stays.
	var snap cart.Snapshot
	var currency string
	email := resp.PayerEmail
	superseded := false
	if known {
		before := f.cart.Subtract(pending.Snapshot.Items)
		superseded = pending.CartHash != before.Hash
		snap = pending.Snapshot
		currency = pending.Currency
		email = pending.Email
	} else {
		snap = f.cart.Take()
		currency, _ = singleCurrency(snap)
	}
	if email == "" {
		if u, ok := f.session.User(); ok {
			email = u.Email
		}
	}

	f.forget(providerOrderID)

	result := &Result{
		ProviderOrderID: providerOrderID,
		Status:          resp.Status,
		Email:           email,
		Superseded:      superseded,
	}

	if email != "" {
		if err := f.store.Set(ctx, store.KeyReceiptEmail, email); err != nil {
			log.WithError(err).Error("failed to persist receipt email")
		}
	}

	user, authed := f.session.User()
	if authed {
		order, err := f.session.AddOrder(ctx, orderDraft(snap, currency))
		switch {
		case err == nil:
			result.Order = &order
		case errors.Is(err, session.ErrNotAuthenticated):
			authed = false
		default:
			log.WithError(err).Error("failed to record order locally")
		}
	}

	key := email
	if authed {
		key = user.ID
	}
	if err := f.publisher.Publish(ctx, publisher.Event{
		Type:       publisher.EventCheckoutCompleted,
		Key:        key,
		OccurredAt: f.now().UTC(),
		Data: map[string]any{
			"provider_order_id": providerOrderID,
			"total":             snap.Total.String(),
			"currency":          currency,
			"items":             snap.TotalItems,
			"guest":             !authed,
		},
	}); err != nil {
		log.WithError(err).Warn("failed to publish checkout event")
	}

	f.record("capture", "completed")
	log.WithFields(logrus.Fields{
		"total":      snap.Total.String(),
		"superseded": superseded,
	}).Info("payment captured")
	return result, nil
}

func orderDraft(snap cart.Snapshot, currency string) session.OrderDraft {
	items := make([]domain.OrderItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, domain.OrderItem{
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			Price:       it.Product.Price,
		})
	}
	return session.OrderDraft{
		Items:       items,
		TotalAmount: snap.Total,
		Currency:    currency,
		Status:      string(domain.CaptureStatusCompleted),
	}
}

// outcomeUnknown reports whether a capture error leaves open whether the payment
// went through. A backend error response or an open breaker means the capture was
// refused or never sent; a gateway error from a proxy in front of the backend does not.
func outcomeUnknown(err error) bool {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status == http.StatusBadGateway || apiErr.Status == http.StatusGatewayTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	}
	return true
}
