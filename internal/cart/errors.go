package cart

import "errors"

var (
	ErrInvalidProduct = errors.New("product must have an id and a non-negative price")
	ErrItemNotFound   = errors.New("item not found in cart")
)
