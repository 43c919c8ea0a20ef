package upstream

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kensaku/internal/backoff"
)

// RateLimitedError signals the upstream explicitly throttled the request.
type RateLimitedError struct {
	StatusCode int
	// RetryAfter is the upstream's hint for how long to wait, 0 when absent.
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream rate limited (status %d, retry after %s)", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("upstream rate limited (status %d)", e.StatusCode)
}

// TransientError wraps a recoverable network-level failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient upstream error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a non-recoverable failure such as a malformed response.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal upstream error: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Classify maps an upstream error onto the backoff failure taxonomy.
// Unrecognized errors are treated as fatal so they cannot retry forever.
func Classify(err error) backoff.FailureKind {
	if err == nil {
		return backoff.None
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return backoff.RateLimited
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return backoff.TransientNetwork
	}
	return backoff.Fatal
}

// RetryAfterHint extracts the upstream's retry-after hint, 0 when absent.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
