package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/halcyon-health/pulse/internal/ratelimit"
)

// Typed failure modes. Agents treat all of them as "degraded" and fall
// back; the distinction exists for logs and metrics.
var (
	// ErrRateLimited means the local limiter rejected the call before
	// any money was spent.
	ErrRateLimited = errors.New("inference: locally rate limited")
	// ErrUnavailable means the breaker is open or retries were
	// exhausted against a failing service.
	ErrUnavailable = errors.New("inference: service unavailable")
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// Client calls the inference service over HTTP JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	maxAttempts uint64
	baseDelay   time.Duration
}

// NewClient creates a client for the service at baseURL. The limiter
// gates calls before any network traffic; pass ratelimit.NoopLimiter{}
// to disable local limiting. A nil logger falls back to slog.Default.
func NewClient(baseURL, apiKey string, limiter ratelimit.Limiter, logger *slog.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "inference",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				logger.Warn("inference breaker state change", "from", from.String(), "to", to.String())
			},
		}),
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// transientError marks a failure worth retrying (rate limit, 5xx,
// network). Everything else aborts the backoff loop immediately.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Complete performs one completion call with local limiting, breaker
// protection, and capped exponential backoff (maxAttempts total tries,
// base delay doubling).
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	allowed, err := c.limiter.Allow(ctx, req.Model)
	if err != nil {
		// Limiter malfunction fails open: a broken local gate must not
		// take down the analysis pipeline.
		c.logger.Warn("inference limiter error, failing open", "error", err)
	} else if !allowed {
		return Response{}, ErrRateLimited
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.completeWithRetry(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("%w: breaker open", ErrUnavailable)
		}
		var te transientError
		if errors.As(err, &te) {
			return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, te.err)
		}
		return Response{}, err
	}
	return out.(Response), nil
}

func (c *Client) completeWithRetry(ctx context.Context, req Request) (Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.Multiplier = 2
	bo.MaxInterval = 8 * c.baseDelay

	var resp Response
	operation := func() error {
		var err error
		resp, err = c.doRequest(ctx, req)
		if err == nil {
			return nil
		}
		var te transientError
		if errors.As(err, &te) {
			c.logger.Debug("inference call failed, retrying", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxAttempts-1), ctx))
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("inference: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("inference: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, transientError{fmt.Errorf("inference: send request: %w", err)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	switch {
	case httpResp.StatusCode == http.StatusOK:
		// fall through to decode
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return Response{}, transientError{fmt.Errorf("inference: status %d: %s", httpResp.StatusCode, snippet)}
	default:
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return Response{}, fmt.Errorf("inference: status %d: %s", httpResp.StatusCode, snippet)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("inference: decode response: %w", err)
	}
	return resp, nil
}
