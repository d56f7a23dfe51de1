package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSONSortsQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	q := map[string][]string{"zeta": {"1"}, "alpha": {"2"}, "mid": {"3"}}
	var out map[string]interface{}
	if err := New(srv.URL, time.Second).GetJSON(context.Background(), "/x", q, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if gotQuery != "alpha=2&mid=3&zeta=1" {
		t.Fatalf("query not sorted: %q", gotQuery)
	}
}

func TestGetJSONClassifiesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).GetJSON(context.Background(), "/x", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if !Retryable(err) {
		t.Fatal("5xx must be retryable")
	}
}

func TestGetJSONClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).GetJSON(context.Background(), "/x", nil, nil)

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rateErr.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %s", rateErr.RetryAfter)
	}
	if rateErr.ResetAt.Unix() != 1700000000 {
		t.Fatalf("ResetAt = %v", rateErr.ResetAt)
	}
	if !Retryable(err) {
		t.Fatal("rate limit must be retryable")
	}
}

func TestGetJSONClassifiesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := New(srv.URL, time.Second).GetJSON(context.Background(), "/x", nil, &out)

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if Retryable(err) {
		t.Fatal("validation failures must not be retryable")
	}
}

type requiredField struct {
	Name string `json:"name"`
}

func (r *requiredField) Validate() error {
	if r.Name == "" {
		return &ValidationError{Issues: []string{"name is required"}}
	}
	return nil
}

func TestGetJSONRunsValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"other":"field"}`))
	}))
	defer srv.Close()

	var out requiredField
	err := New(srv.URL, time.Second).GetJSON(context.Background(), "/x", nil, &out)

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestGetJSONClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := New(srv.URL, 20*time.Millisecond).GetJSON(context.Background(), "/x", nil, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if !netErr.Timeout {
		t.Fatal("timeout not flagged")
	}
	if !Retryable(err) {
		t.Fatal("network errors must be retryable")
	}
}

func TestRetryableTable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil-wrapped api 404", &APIError{Status: 404}, false},
		{"api 408", &APIError{Status: 408}, true},
		{"api 429", &APIError{Status: 429}, true},
		{"api 500", &APIError{Status: 500}, true},
		{"api 503", &APIError{Status: 503}, true},
		{"validation", &ValidationError{Issues: []string{"x"}}, false},
		{"network", &NetworkError{Err: errors.New("refused")}, true},
		{"rate limit", &RateLimitError{}, true},
		{"plain error", errors.New("whatever"), false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
