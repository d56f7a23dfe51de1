/**
 * @description
 * Typed errors for the upstream API clients, plus the retryability rule the
 * sync timers rely on. Clients never retry on their own; the next tick does.
 */

package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx HTTP response
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, body)
}

// ValidationError means the response decoded but failed the schema subset we
// require. Not retryable; the payload will not get better on the next tick.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", strings.Join(e.Issues, "; "))
}

// NetworkError is a transport failure, including client-side timeouts
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error (timeout): %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RateLimitError is a 429 with optional upstream backpressure hints
type RateLimitError struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Retryable reports whether a failed call may succeed on a later attempt.
// Rate limits and transport failures always may; server-side errors (5xx,
// 408, 429) may; anything else, including validation failures, will not.
func Retryable(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return true
		}
		return apiErr.Status == http.StatusRequestTimeout || apiErr.Status == http.StatusTooManyRequests
	}

	return false
}
