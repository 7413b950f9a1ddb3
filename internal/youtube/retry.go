package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// backoff bounds the retry loop for YouTube calls. Waits double per attempt
// up to max.
type backoff struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

var defaultRetry = backoff{attempts: 4, base: 500 * time.Millisecond, max: 10 * time.Second}

// retryHTTP issues fn until it yields a usable response. Transport failures
// and 429/5xx statuses are retried with backoff; any other response is
// returned as-is, so callers only ever see statuses they must handle
// themselves.
func retryHTTP(ctx context.Context, bo backoff, fn func() (*http.Response, error)) (*http.Response, error) {
	wait := bo.base
	var lastErr error

	for attempt := 1; attempt <= bo.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := fn()
		if err == nil {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			resp.Body.Close()
			err = &statusError{code: resp.StatusCode}
		}
		lastErr = err

		if !transient(err) {
			return nil, err
		}
		if attempt == bo.attempts {
			break
		}

		slog.Debug("youtube: transient failure, backing off",
			slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if wait *= 2; wait > bo.max {
			wait = bo.max
		}
	}
	return nil, lastErr
}

// statusError marks a response that was consumed by the retry loop.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}

// transient reports whether err is worth another attempt: a retryable
// status, a connection-level failure, DNS trouble, or a timeout.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return true
	}
	var op *net.OpError
	var dns *net.DNSError
	if errors.As(err, &op) || errors.As(err, &dns) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
