// Package rest implements the harmony transport contract over HTTP.
//
// It owns authentication headers, JSON serialization, and transparent retry
// of transient failures (rate limits and server errors); callers receive
// either a decoded response or a structured *APIError.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"harmony/pkg/harmony"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultAPIBase       = "https://api.harmony.chat/v1"
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 5
	defaultMaxRetryAfter = 30 * time.Second
	userAgent            = "harmony-client/1.0"
)

// Option mutates REST client configuration.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		if baseURL != "" {
			client.baseURL = baseURL
		}
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithMaxRetries caps how many times one request is retried on transient
// failure.
func WithMaxRetries(maxRetries uint64) Option {
	return func(client *Client) {
		client.maxRetries = maxRetries
	}
}

// Client is the HTTP implementation of harmony.Requester.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	logger        *slog.Logger
	maxRetries    uint64
	maxRetryAfter time.Duration
}

// New creates a REST client authenticating with the given bot token.
func New(token string, options ...Option) *Client {
	client := &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		baseURL:       defaultAPIBase,
		token:         token,
		logger:        slog.Default(),
		maxRetries:    defaultMaxRetries,
		maxRetryAfter: defaultMaxRetryAfter,
	}
	for _, option := range options {
		option(client)
	}

	return client
}

// Do performs one request with transparent retry on transient failures and
// decodes the JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, request harmony.Request, out any) error {
	var body []byte
	if request.Body != nil {
		encoded, err := json.Marshal(request.Body)
		if err != nil {
			return fmt.Errorf("rest %s %s: encode body: %w", request.Method, request.Route, err)
		}
		body = encoded
	}

	var response []byte
	operation := func() error {
		payload, err := c.roundTrip(ctx, request, body)
		if err != nil {
			return err
		}
		response = payload
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("rest %s %s: %w", request.Method, request.Route, err)
	}

	if out == nil || len(response) == 0 {
		return nil
	}
	if err := json.Unmarshal(response, out); err != nil {
		return fmt.Errorf("rest %s %s: decode response: %w", request.Method, request.Route, err)
	}

	return nil
}

func (c *Client) roundTrip(ctx context.Context, request harmony.Request, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, c.baseURL+request.Route, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpRequest.Header.Set("User-Agent", userAgent)
	if body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if request.NeedsAuth {
		httpRequest.Header.Set("Authorization", "Bot "+c.token)
	}
	if request.Reason != "" {
		httpRequest.Header.Set("X-Audit-Log-Reason", url.PathEscape(request.Reason))
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	defer func() { _ = httpResponse.Body.Close() }()

	payload, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResponse.StatusCode >= 200 && httpResponse.StatusCode < 300 {
		return payload, nil
	}

	apiErr := c.classify(request, httpResponse.StatusCode, payload)
	if !apiErr.Temporary() {
		return nil, backoff.Permanent(apiErr)
	}

	if apiErr.RetryAfter > 0 {
		c.logger.WarnContext(ctx,
			"rate limited, honoring retry-after",
			"method", request.Method,
			"route", request.Route,
			"retry_after", apiErr.RetryAfter.String(),
		)
		if err := c.waitRetryAfter(ctx, apiErr.RetryAfter); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	return nil, apiErr
}

type errorPayload struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
}

func (c *Client) classify(request harmony.Request, status int, payload []byte) *APIError {
	apiErr := &APIError{
		Method: request.Method,
		Route:  request.Route,
		Status: status,
	}

	var parsed errorPayload
	if len(payload) > 0 && json.Unmarshal(payload, &parsed) == nil {
		apiErr.Message = parsed.Message
		apiErr.Code = parsed.Code
		if parsed.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(parsed.RetryAfter * float64(time.Second))
		}
	}

	return apiErr
}

func (c *Client) waitRetryAfter(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter > c.maxRetryAfter {
		retryAfter = c.maxRetryAfter
	}

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ harmony.Requester = (*Client)(nil)
