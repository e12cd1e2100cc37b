package apiclient

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const paymentProvider = "paypal"

// Amount marshals as a bare JSON number.
type Amount decimal.Decimal

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

type PaymentLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice Amount `json:"unitPrice"`
	Currency  string `json:"currency"`
}

type CreateOrderRequest struct {
	Items    []PaymentLine `json:"items"`
	Total    Amount        `json:"total"`
	Currency string        `json:"currency"`
	Email    string        `json:"email"`
}

type CreateOrderResponse struct {
	ProviderOrderID string
}

type CaptureResponse struct {
	ProviderOrderID string
	Status          domain.CaptureStatus
	PayerEmail      string
}

// CreatePaymentOrder registers the cart with the payment provider through the
// backend. Every call creates a new provider order.
func (c *Client) CreatePaymentOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	data, err := c.do(ctx, call{
		method:        http.MethodPost,
		path:          "/payments/" + paymentProvider + "/create-order",
		body:          req,
		authenticated: true,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrBadResponse
	}

	id := firstString(data, "id", "orderId", "orderID")
	if id == "" {
		return nil, ErrMissingOrderID
	}
	return &CreateOrderResponse{ProviderOrderID: id}, nil
}

// CapturePaymentOrder asks the backend to capture an approved provider order. It
// uses the longer capture timeout and is never retried.
func (c *Client) CapturePaymentOrder(ctx context.Context, providerOrderID string) (*CaptureResponse, error) {
	data, err := c.do(ctx, call{
		method:        http.MethodPost,
		path:          "/payments/" + paymentProvider + "/capture-order",
		body:          map[string]string{"orderId": providerOrderID},
		authenticated: true,
		timeout:       c.captureTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrBadResponse
	}

	resp := &CaptureResponse{
		ProviderOrderID: firstString(data, "id", "orderId"),
		Status: domain.CaptureStatus(firstString(data,
			"status",
			"captureStatus",
			"purchase_units.0.payments.captures.0.status")),
		PayerEmail: firstString(data, "payer.email_address", "payerEmail", "email"),
	}
	if resp.ProviderOrderID == "" {
		resp.ProviderOrderID = providerOrderID
	}
	return resp, nil
}

