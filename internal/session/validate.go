package session

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const MinPasswordLength = 8

var validate = validator.New()

// ValidateEmail accepts a bare address with a dotted domain. Display names
// ("Jana <j@x.cz>") are rejected.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
