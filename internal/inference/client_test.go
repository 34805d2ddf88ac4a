package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a client at srv with fast retries.
func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "test-key", nil, nil)
	c.baseDelay = time.Millisecond
	return c
}

func okHandler(text string, cost float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{Text: text, Cost: cost})
	}
}

func TestClient_Complete(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/complete", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "journal-classify-1", req.Model)

		okHandler(`{"ok":true}`, 0.01)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.Complete(context.Background(), Request{Model: "journal-classify-1", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 0.01, resp.Cost)
	assert.Equal(t, "Bearer test-key", gotAuth.Load())
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			okHandler("ok", 0.02)(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable, "a 4xx is the caller's bug, not unavailability")
	assert.Equal(t, int64(1), calls.Load())
}

func TestClient_ExhaustedRetriesSurfaceUnavailable(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(defaultMaxAttempts), calls.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Complete(ctx, Request{Model: "m"})
		require.ErrorIs(t, err, ErrUnavailable)
	}

	before := calls.Load()
	_, err := c.Complete(ctx, Request{Model: "m"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, calls.Load(), "open breaker must short-circuit without network traffic")
}

func TestClient_LocalRateLimit(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		okHandler("ok", 0.01)(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", denyLimiter{}, nil)
	_, err := c.Complete(context.Background(), Request{Model: "m"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Zero(t, calls.Load(), "a rejected call must not reach the network")
}

func TestClient_LimiterErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(okHandler("ok", 0.01))
	defer srv.Close()

	c := NewClient(srv.URL, "", brokenLimiter{}, nil)
	resp, err := c.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyLimiter) Close() error                                { return nil }

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, assert.AnError
}
func (brokenLimiter) Close() error { return nil }
