package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/sirupsen/logrus"
)

// CreateOrder registers the current cart with the payment provider. Every call
// creates a new provider order; an earlier pending order is abandoned, not
// cancelled. Signed-in shoppers pay with their account email, guests must pass one.
func (f *Flow) CreateOrder(ctx context.Context, guestEmail string) (*PendingOrder, error) {
	snap := f.cart.Snapshot()
	if len(snap.Items) == 0 {
		f.record("create", "empty_cart")
		return nil, ErrEmptyCart
	}

	currency, err := singleCurrency(snap)
	if err != nil {
		f.record("create", "mixed_currency")
		return nil, err
	}

	email, err := f.buyerEmail(guestEmail)
	if err != nil {
		f.record("create", "invalid_email")
		return nil, err
	}

	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	req := apiclient.CreateOrderRequest{
		Items:    make([]apiclient.PaymentLine, 0, len(snap.Items)),
		Total:    apiclient.Amount(snap.Total),
		Currency: currency,
		Email:    email,
	}
	for _, it := range snap.Items {
		req.Items = append(req.Items, apiclient.PaymentLine{
			ProductID: it.Product.ID,
			Quantity:  it.Quantity,
			UnitPrice: apiclient.Amount(it.Product.Price),
			Currency:  currency,
		})
	}

	resp, err := f.payments.CreatePaymentOrder(ctx, req)
	if err != nil {
		f.record("create", "failed")
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	p := &PendingOrder{
		ProviderOrderID: resp.ProviderOrderID,
		CartHash:        snap.Hash,
		Email:           email,
		Currency:        currency,
		Snapshot:        snap,
		CreatedAt:       f.now().UTC(),
	}
	f.remember(seq, p)
	f.record("create", "created")

	f.logger.WithFields(logrus.Fields{
		"provider_order_id": p.ProviderOrderID,
		"cart_hash":         p.CartHash,
		"items":             snap.TotalItems,
	}).Info("payment order created")

	out := *p
	return &out, nil
}

func singleCurrency(snap cart.Snapshot) (string, error) {
	var currency string
	for _, it := range snap.Items {
		c := strings.ToUpper(it.Product.Currency)
		if currency == "" {
			currency = c
			continue
		}
		if c != currency {
			return "", ErrMixedCurrency
		}
	}
	return currency, nil
}

func (f *Flow) buyerEmail(guestEmail string) (string, error) {
	if u, ok := f.session.User(); ok && u.Email != "" {
		return u.Email, nil
	}
	guestEmail = strings.TrimSpace(guestEmail)
	if guestEmail == "" {
		return "", ErrEmailRequired
	}
	if err := session.ValidateEmail(guestEmail); err != nil {
		return "", err
	}
	return guestEmail, nil
}
