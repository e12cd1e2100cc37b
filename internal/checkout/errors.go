package checkout

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrMixedCurrency = errors.New("cart holds more than one currency")
	ErrEmailRequired = errors.New("buyer email is required")
	ErrNoOrderID     = errors.New("provider order id is required")
	// ErrCaptureOutcomeUnknown means the capture request was sent but no answer
	// arrived. The payment may have gone through; the cart is kept and the shopper
	// should check the order history before paying again.
	ErrCaptureOutcomeUnknown = errors.New("payment capture outcome unknown")
)

// PaymentError is a capture that came back with a status other than COMPLETED.
type PaymentError struct {
	ProviderOrderID string
	Status          domain.CaptureStatus
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s not completed: status %s", e.ProviderOrderID, e.Status)
}
