// Package httpretry provides an HTTP client with optional retry logic,
// exponential backoff, and jitter for external API calls.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff and jitter.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger
}

// NewRetryClient wraps client. A nil client gets a default http.Client
// with a 30s timeout. maxRetries is the number of attempts after the
// first; zero or less means a single attempt.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		log:        logger.Default(),
	}
}

// WithLogger sets the logger used for retry notices.
func (rc *RetryClient) WithLogger(l *logger.Logger) *RetryClient {
	rc.log = l
	return rc
}

// Do executes the request, retrying on 429/5xx and transport errors. Client
// errors and context cancellation are never retried. The last response is
// returned as-is so the caller can inspect it.
//
// A Retry-After header in seconds on a 429 or 503 replaces the computed
// backoff for the next attempt, capped at maxDelay.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var (
		lastErr    error
		retryAfter time.Duration
	)

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.calculateDelay(attempt)
			if retryAfter > 0 {
				delay = retryAfter
			}
			rc.log.Warn("httpretry: retrying request",
				"attempt", attempt, "max_retries", rc.maxRetries,
				"method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "delay", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		retryAfter = rc.parseRetryAfter(resp.Header.Get("Retry-After"))

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// calculateDelay is full-jitter exponential backoff:
// random(0, min(maxDelay, baseDelay * 2^(attempt-1))), floored at 50ms.
func (rc *RetryClient) calculateDelay(attempt int) time.Duration {
	expDelay := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if expDelay > float64(rc.maxDelay) {
		expDelay = float64(rc.maxDelay)
	}

	jittered := time.Duration(rand.Float64() * expDelay)
	if jittered < 50*time.Millisecond {
		jittered = 50 * time.Millisecond
	}
	return jittered
}

// parseRetryAfter accepts the delay-seconds form only. HTTP dates and
// garbage yield zero.
func (rc *RetryClient) parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > rc.maxDelay {
		return rc.maxDelay
	}
	return d
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
