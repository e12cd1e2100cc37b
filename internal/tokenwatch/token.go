// Package tokenwatch detects bearer token expiry on the client side, before a
// request fails with 401.
package tokenwatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token carries no exp claim")

type State int

const (
	NoToken State = iota
	Invalid
	Active
	Warning
	Expired
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "no_token"
	case Invalid:
		return "invalid"
	case Active:
		return "active"
	case Warning:
		return "warning"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Valid reports whether the token may still be attached to requests.
func (s State) Valid() bool {
	return s == Active || s == Warning
}

const DefaultWarningWindow = 300 * time.Second

type Status struct {
	State     State         `json:"state"`
	ExpiresAt time.Time     `json:"expiresAt,omitempty"`
	Remaining time.Duration `json:"remaining"`
}

// ExpiresAt decodes the exp claim without verifying the signature; verification is
// the backend's job, the client only needs to know when to stop using the token.
func ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Classify computes the status of token at now.
func Classify(token string, now time.Time, warning time.Duration) Status {
	if token == "" {
		return Status{State: NoToken}
	}
	exp, err := ExpiresAt(token)
	if err != nil {
		return Status{State: Invalid}
	}

	remaining := exp.Sub(now)
	st := Status{ExpiresAt: exp, Remaining: remaining}
	switch {
	case remaining <= 0:
		st.State = Expired
		st.Remaining = 0
	case remaining <= warning:
		st.State = Warning
	default:
		st.State = Active
	}
	return st
}

// IsUsable reports whether token decodes and has not expired at now.
func IsUsable(token string, now time.Time) bool {
	return Classify(token, now, 0).State.Valid()
}
