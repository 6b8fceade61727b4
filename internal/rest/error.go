package rest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError carries structured metadata for one failed API request.
type APIError struct {
	// Method is the HTTP verb of the failed request.
	Method string
	// Route is the API route of the failed request.
	Route string
	// Status is the HTTP status code.
	Status int
	// Code carries the platform error code when known.
	Code int
	// Message carries the platform error message when known.
	Message string
	// RetryAfter carries the suggested retry delay for rate-limited failures.
	RetryAfter time.Duration
}

// Error returns one operator-readable failure summary.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 6)
	if method := strings.TrimSpace(e.Method); method != "" {
		fields = append(fields, "method="+method)
	}
	if route := strings.TrimSpace(e.Route); route != "" {
		fields = append(fields, "route="+route)
	}
	if e.Status != 0 {
		fields = append(fields, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != 0 {
		fields = append(fields, fmt.Sprintf("code=%d", e.Code))
	}
	if e.RetryAfter > 0 {
		fields = append(fields, "retry_after="+e.RetryAfter.String())
	}
	if message := strings.TrimSpace(e.Message); message != "" {
		fields = append(fields, "message="+message)
	}

	if len(fields) == 0 {
		return "api error"
	}

	return "api error: " + strings.Join(fields, " ")
}

// Temporary reports whether the failure is worth retrying.
func (e *APIError) Temporary() bool {
	if e == nil {
		return false
	}

	return e.Status == 429 || e.Status >= 500
}

// AsAPIError extracts one APIError from wrapped error chains.
func AsAPIError(err error) (*APIError, bool) {
	if err == nil {
		return nil, false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}
