// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP helper used for every
// Search Service call.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// MaxRetryDelay caps a single backoff wait, including Retry-After hints.
var MaxRetryDelay = 30 * time.Second

const defaultMaxRetries = 5

// Retryable reports whether a response status is worth retrying: rate
// limiting and gateway-style server failures.
func Retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryPolicy decides whether an attempt is retried. Exactly one of resp
// and err is non-nil.
type RetryPolicy func(resp *http.Response, err error) bool

// RetryIdempotent retries every transport error and every Retryable status.
// It suits reads, which the service can answer twice without harm.
func RetryIdempotent(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return Retryable(resp.StatusCode)
}

// RetryUnsent retries only when the server certainly did not act on the
// request: a 429 answer, or a connection that was never established. Gateway
// errors and timeouts are ambiguous and are not retried.
func RetryUnsent(resp *http.Response, err error) bool {
	if err != nil {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial"
	}
	return resp.StatusCode == http.StatusTooManyRequests
}

// DoWithRetry executes an HTTP request and retries on transport errors and
// on Retryable statuses with exponential backoff. It is DoWithPolicy with
// RetryIdempotent.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	return DoWithPolicy(ctx, client, req, maxRetries, RetryIdempotent)
}

// DoWithPolicy executes an HTTP request and retries the attempts retry
// accepts, with exponential backoff. The delay starts at RetryBaseDelay and
// doubles each attempt, capped at MaxRetryDelay. A Retry-After header in
// seconds replaces the computed delay.
//
// When maxRetries is 0 the default (5) is used. Request bodies are replayed
// through req.GetBody, so requests built with http.NewRequestWithContext
// from a bytes.Reader retry safely. If the context is cancelled during a
// backoff wait the function returns ctx.Err(). A response the policy
// declines, or the last one after exhausting retries, is returned so the
// caller can inspect it; likewise the last transport error if no response
// was received.
func DoWithPolicy(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, retry RetryPolicy) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if retry == nil {
		retry = RetryIdempotent
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= maxRetries || !retry(nil, err) {
				return nil, err
			}
		} else {
			if attempt >= maxRetries || !retry(resp, nil) {
				return resp, nil
			}
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		if resp != nil {
			if hint, ok := retryAfter(resp); ok {
				backoff = hint
			}
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if backoff > MaxRetryDelay {
			backoff = MaxRetryDelay
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// retryAfter parses a Retry-After header given in whole seconds.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
