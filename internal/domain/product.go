package domain

import "github.com/shopspring/decimal"

type ProductType string

const (
	ProductTypeDigital  ProductType = "DIGITAL"
	ProductTypePhysical ProductType = "PHYSICAL"
)

func (t ProductType) IsDigital() bool {
	return t == ProductTypeDigital
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Type        ProductType     `json:"productType"`
	Description string          `json:"description,omitempty"`
	Gallery     []string        `json:"gallery,omitempty"`
}
