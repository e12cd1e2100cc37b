package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Order is either a local record created right after a capture or an entry of the
// server history. Status is kept verbatim as the backend sent it.
type Order struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency,omitempty"`
	Status      string          `json:"status"`
}
