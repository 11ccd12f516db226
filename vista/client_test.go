package vista

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestBackoffSchedule verifies the exponential schedule and its 10s cap.
func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{7, 10 * time.Second},
	}
	for _, c := range cases {
		if got := backoffSchedule(0, 0, c.attempt, nil); got != c.want {
			t.Errorf("attempt %d: got %v, want %v", c.attempt, got, c.want)
		}
	}
}

// TestCheckRetryClassification verifies the retryable/terminal split.
func TestCheckRetryClassification(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusOK, false},
	}
	for _, c := range cases {
		retry, err := checkRetry(ctx, &http.Response{StatusCode: c.status}, nil)
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", c.status, err)
		}
		if retry != c.want {
			t.Errorf("status %d: retry = %v, want %v", c.status, retry, c.want)
		}
	}

	if retry, _ := checkRetry(ctx, nil, errors.New("connection reset")); !retry {
		t.Error("network error should be retryable")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if retry, err := checkRetry(canceled, nil, nil); retry || err == nil {
		t.Error("canceled context must stop the retry loop with an error")
	}
}

// TestClientRetriesTransientFailure verifies a 500 is retried and the second
// attempt's body is returned.
func TestClientRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 1, "1": map[string]any{"Codigo": "77"}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL, RetryMax: 2})
	c.http.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return 0 }

	env, err := c.ListRecords(context.Background(), searchPayload{Fields: []any{"Codigo"}})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("upstream saw %d calls, want 2", got)
	}
	if len(env.Records) != 1 || rawString(env.Records[0], "Codigo") != "77" {
		t.Errorf("unexpected records: %+v", env.Records)
	}
}

// TestClientNeverRetriesAuthFailure verifies a 401 hits the upstream exactly
// once and surfaces as ErrUnauthorized.
func TestClientNeverRetriesAuthFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "invalid key"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "bad", BaseURL: srv.URL, RetryMax: 3})
	_, err := c.ListRecords(context.Background(), searchPayload{Fields: []any{"Codigo"}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Errorf("want StatusError with status 401, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream saw %d calls, want exactly 1", got)
	}
}

// TestClientRetriesRateLimit verifies 429 is treated as transient.
func TestClientRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 0})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL, RetryMax: 1})
	c.http.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration { return 0 }

	if _, err := c.ListRecords(context.Background(), searchPayload{}); err != nil {
		t.Fatalf("ListRecords after 429: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("upstream saw %d calls, want 2", got)
	}
}

// TestClientSignsEveryRequest verifies the static key travels as a query
// parameter.
func TestClientSignsEveryRequest(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 0})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "secret-key", BaseURL: srv.URL})
	if _, err := c.ListRecords(context.Background(), searchPayload{}); err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("key param = %q, want %q", gotKey, "secret-key")
	}
}

// TestClientClassifiesFieldRejection verifies a 400 naming a field becomes an
// UnsupportedFieldError.
func TestClientClassifiesFieldRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "O campo ValorUnico não existe"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := c.ListRecords(context.Background(), searchPayload{Fields: []any{"ValorUnico"}})
	var ufe *UnsupportedFieldError
	if !errors.As(err, &ufe) {
		t.Fatalf("want UnsupportedFieldError, got %v", err)
	}
	if ufe.Field != "ValorUnico" {
		t.Errorf("parsed field = %q, want %q", ufe.Field, "ValorUnico")
	}
}
