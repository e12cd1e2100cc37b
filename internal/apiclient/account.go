package apiclient

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MyOrders returns the raw order history body; its shape varies between backend
// versions and is normalized by the orders package.
func (c *Client) MyOrders(ctx context.Context) ([]byte, error) {
	return c.do(ctx, call{
		method:        http.MethodGet,
		path:          "/orders/me",
		authenticated: true,
	})
}

// GetProfile returns the profile fields present in the response; absent fields
// stay nil.
func (c *Client) GetProfile(ctx context.Context) (*domain.ProfilePatch, error) {
	data, err := c.do(ctx, call{
		method:        http.MethodGet,
		path:          "/users/me",
		authenticated: true,
	})
	if err != nil {
		return nil, err
	}
	var patch domain.ProfilePatch
	if err := decode(data, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p domain.Profile) (*domain.ProfilePatch, error) {
	data, err := c.do(ctx, call{
		method:        http.MethodPut,
		path:          "/users/me",
		body:          p,
		authenticated: true,
	})
	if err != nil {
		return nil, err
	}
	var patch domain.ProfilePatch
	if err := decode(data, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}
