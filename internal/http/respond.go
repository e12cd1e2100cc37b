package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// decodeJSON reads a JSON body, rejecting unknown fields and trailing data.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// handleUpstreamError converts a backend failure into a gateway response.
func handleUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			respondError(w, http.StatusUnauthorized, "unauthenticated", "session ended, please sign in again")
		case apiErr.Status == http.StatusNotFound:
			respondError(w, http.StatusNotFound, "not_found", apiErr.Message)
		case apiErr.IsClientError():
			respondErrorDetails(w, http.StatusUnprocessableEntity, "rejected", "request rejected by the shop backend", apiErr.Message)
		default:
			respondErrorDetails(w, http.StatusBadGateway, "upstream_error", "shop backend failed", apiErr.Message)
		}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "shop backend is unavailable, try again shortly")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "shop backend did not answer in time")
	case errors.Is(err, apiclient.ErrBadResponse), errors.Is(err, apiclient.ErrMissingOrderID):
		respondErrorDetails(w, http.StatusBadGateway, "bad_upstream_response", "unexpected answer from the shop backend", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "upstream_error", "shop backend request failed")
	}
}
