// Package httputil provides the HTTP client plumbing for outbound calls.
//
// [Retry] wraps transient failures (network errors, 5xx responses, 429 rate
// limits) with exponential backoff, and [Do] issues a request through that
// retry loop while reporting request, response, and error events to the
// observability hooks. The narrative client is the main consumer.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/planviz/planviz/pkg/observability"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with sensible
// defaults: 3 attempts with 1 second initial delay (doubling each retry).
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Do builds a fresh request per attempt and issues it through client inside
// the default retry loop. A factory rather than a request, so retried POST
// bodies are never re-read from a drained reader. Responses with status 429
// or 5xx count as transient and are retried; the final response is returned
// to the caller, who owns closing the body. Request, response, and error
// events go to the registered HTTP hooks.
func Do(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	var resp *http.Response
	err := RetryWithBackoff(ctx, func() error {
		req, err := build()
		if err != nil {
			return err
		}
		method, host, path := req.Method, req.URL.Host, req.URL.Path
		observability.HTTP().OnRequest(ctx, method, host, path)
		start := time.Now()

		r, err := client.Do(req.WithContext(ctx))
		if err != nil {
			observability.HTTP().OnError(ctx, method, host, path, err)
			return &RetryableError{Err: err}
		}
		observability.HTTP().OnResponse(ctx, method, host, path, r.StatusCode, time.Since(start))

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			_ = r.Body.Close()
			return &RetryableError{Err: fmt.Errorf("%s %s: status %d", method, path, r.StatusCode)}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
