// Package apiclient talks to the storefront backend over HTTP JSON. The client owns
// the bearer token; every request reads it at send time, so a token cleared by a
// logout is never attached afterwards.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 4 << 20 // 4MB

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	CaptureTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	HTTPClient     *http.Client
	Signals        *events.Bus[domain.LogoutSignal]
	Logger         logrus.FieldLogger
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	captureTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	breaker        *gobreaker.CircuitBreaker[*response]
	signals        *events.Bus[domain.LogoutSignal]
	logger         logrus.FieldLogger

	mu    sync.RWMutex
	token string
}

type response struct {
	status int
	body   []byte
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 45 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(base)}

	c := &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		timeout:        cfg.Timeout,
		captureTimeout: cfg.CaptureTimeout,
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   cfg.RetryBackoff,
		signals:        cfg.Signals,
		logger:         cfg.Logger.WithField("component", "apiclient"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.IsClientError())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	})
	return c, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type call struct {
	method string
	path   string
	body   any
	// authenticated calls attach the bearer token and turn a 401 into a logout signal
	authenticated bool
	timeout       time.Duration
}

// do sends the call and returns the raw 2xx body. Non-2xx answers become *APIError.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s body failed: %w", cl.method, cl.path, err)
		}
	}

	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	attempts := 1
	if cl.method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryBackoff<<(attempt-1)); err != nil {
				return nil, err
			}
		}

		var token string
		if cl.authenticated {
			token = c.Token()
		}
		resp, err := c.breaker.Execute(func() (*response, error) {
			return c.send(ctx, cl, token, payload, timeout)
		})
		if err == nil {
			return resp.body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status == http.StatusUnauthorized && cl.authenticated {
				c.raiseUnauthorized(cl, token)
			}
			if !retryableStatus(apiErr.Status) {
				return nil, err
			}
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.WithFields(logrus.Fields{"method": cl.method, "path": cl.path, "attempt": attempt + 1}).
			WithError(err).Debug("request failed")
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, cl call, token string, payload []byte, timeout time.Duration) (*response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", cl.method, cl.path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response failed: %w", cl.method, cl.path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newAPIError(res.StatusCode, data)
	}
	return &response{status: res.StatusCode, body: data}, nil
}

// raiseUnauthorized drops the token and broadcasts one logout signal per 401 answer.
// A 401 for a token that has since been replaced belongs to an ended session and is
// ignored.
func (c *Client) raiseUnauthorized(cl call, sent string) {
	log := c.logger.WithFields(logrus.Fields{"method": cl.method, "path": cl.path})

	c.mu.Lock()
	if c.token != sent {
		c.mu.Unlock()
		log.Debug("401 for a replaced token ignored")
		return
	}
	c.token = ""
	c.mu.Unlock()

	log.Warn("backend answered 401, ending session")
	if c.signals != nil {
		c.signals.Publish(domain.LogoutSignal{Reason: domain.LogoutReasonAPIError, At: time.Now()})
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
