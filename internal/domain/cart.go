package domain

import "github.com/shopspring/decimal"

// CartLineItem is one product in the cart. Digital products always carry quantity 1.
type CartLineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
