/**
 * @description
 * Shared request pipeline for the upstream REST clients (catalog, CLOB,
 * data API). Builds URLs with sorted query parameters, applies the per-call
 * timeout, injects optional auth headers, decodes JSON, and classifies
 * failures into the typed errors in errors.go.
 *
 * The individual clients stay thin: endpoint paths, query params, and
 * response types only.
 *
 * @dependencies
 * - net/http
 * - encoding/json
 */

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultTimeout = 30 * time.Second

// AuthFunc injects authentication headers into an outgoing request.
// body is the request payload (empty for GET); implementations that sign over
// the body need it before the request is sent.
type AuthFunc func(req *http.Request, body []byte) error

// Validator lets response types declare the required subset of their fields.
// Unknown upstream fields always pass through untouched.
type Validator interface {
	Validate() error
}

// Requester is the common HTTP pipeline shared by all upstream clients
type Requester struct {
	BaseURL    string
	HTTPClient *http.Client
	Auth       AuthFunc
	UserAgent  string
}

// New creates a requester for a base URL with the given per-call timeout
func New(baseURL string, timeout time.Duration) *Requester {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Requester{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetJSON performs a GET with sorted query parameters and decodes the
// response body into out. out may implement Validator.
func (r *Requester) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(r.BaseURL + path)
	if err != nil {
		return &ValidationError{Issues: []string{fmt.Sprintf("invalid url %q: %v", r.BaseURL+path, err)}}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode() // Encode sorts keys
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	if r.Auth != nil {
		if err := r.Auth(req, nil); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return rateLimitFromHeaders(resp.Header)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &ValidationError{Issues: []string{fmt.Sprintf("malformed JSON body: %v", err)}}
		}
		if v, ok := out.(Validator); ok {
			if err := v.Validate(); err != nil {
				var valErr *ValidationError
				if errors.As(err, &valErr) {
					return valErr
				}
				return &ValidationError{Issues: []string{err.Error()}}
			}
		}
	}

	return nil
}

// classifyTransportError maps http.Client failures to NetworkError,
// flagging timeouts (client timeout or context deadline).
func classifyTransportError(err error) error {
	timeout := false

	if errors.Is(err, context.DeadlineExceeded) {
		timeout = true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		timeout = true
	}

	return &NetworkError{Timeout: timeout, Err: err}
}

// rateLimitFromHeaders builds a RateLimitError from Retry-After /
// X-RateLimit-Reset when present.
func rateLimitFromHeaders(h http.Header) *RateLimitError {
	rl := &RateLimitError{}

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.ResetAt = time.Unix(unix, 0)
		}
	}

	return rl
}
