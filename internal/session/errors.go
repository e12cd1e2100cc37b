package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrNotAuthenticated   = errors.New("not signed in")
	ErrSessionChanged     = errors.New("session changed while the request was in flight")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email address is not confirmed")
	ErrLoginUnavailable   = errors.New("login is currently unavailable")
)

type LoginErrorKind int

const (
	InvalidCredentials LoginErrorKind = iota
	EmailNotConfirmed
	Unavailable
)

func (k LoginErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case EmailNotConfirmed:
		return "email_not_confirmed"
	default:
		return "unavailable"
	}
}

// LoginError tags a failed login so callers can branch on Kind, e.g. to offer
// resending the confirmation mail.
type LoginError struct {
	Kind LoginErrorKind
	Err  error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("login failed (%s)", e.Kind)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

func (e *LoginError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Kind == InvalidCredentials
	case ErrEmailNotConfirmed:
		return e.Kind == EmailNotConfirmed
	case ErrLoginUnavailable:
		return e.Kind == Unavailable
	}
	return false
}
