package apiclient

import (
	"context"
	"net/http"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Email string `json:"email"`
	// EmailConfirmed is nil when the backend omits the field.
	EmailConfirmed *bool `json:"emailConfirmed"`
}

// Login exchanges credentials for a token. A 401 here means wrong credentials, not
// an ended session, so no logout signal is raised.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	data, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   LoginRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, call{
		method:        http.MethodPost,
		path:          "/auth/logout",
		authenticated: true,
	})
	return err
}

func (c *Client) ResendConfirmation(ctx context.Context, email string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/resend-confirmation",
		body:   map[string]string{"email": email},
	})
	return err
}
