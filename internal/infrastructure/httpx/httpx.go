// Package httpx carries the HTTP plumbing shared by the outbound provider
// clients: bounded retries with exponential backoff and size-limited body
// reads.
package httpx

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// MaxAttempts is how many times a request is tried before giving up.
const MaxAttempts = 3

// RetryableStatus reports whether a response status is worth retrying.
// Only server-side failures are transient; 4xx responses, rate-limit hits
// included, come back to the caller untouched.
func RetryableStatus(code int) bool {
	return code >= http.StatusInternalServerError
}

// exponentialBackoff returns the wait after the given failed attempt.
func exponentialBackoff(attempt int) time.Duration {
	d := 500 * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// DoWithRetry executes the request produced by build, retrying network
// errors and retryable statuses up to MaxAttempts. build runs once per
// attempt so request bodies are fresh, and should bind the request to ctx.
// Non-retryable responses are returned as-is; the caller owns the body.
func DoWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(exponentialBackoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("[HTTP] request error (attempt %d): %v", attempt, err)
			lastErr = err
			continue
		}

		if RetryableStatus(resp.StatusCode) {
			log.Printf("[HTTP] %s returned %d (attempt %d)", req.URL.Host, resp.StatusCode, attempt)
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, req.URL.Host)
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			continue
		}

		return resp, nil
	}
	return nil, lastErr
}

// ReadLimitedBody reads at most limit bytes of a response body. Provider
// responses are untrusted input; the cap keeps a runaway body from
// exhausting memory.
func ReadLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
