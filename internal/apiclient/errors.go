package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMissingOrderID = errors.New("payment provider did not return an order id")
	ErrBadResponse    = errors.New("unexpected response body")
)

// APIError is a non-2xx answer from the storefront backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsClientError reports whether the backend rejected the request itself (4xx),
// which says nothing about the backend's health.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		e.Code = gjson.GetBytes(body, "code").String()
		e.Message = firstString(body, "message", "error", "detail")
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
