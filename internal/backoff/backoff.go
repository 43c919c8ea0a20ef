// Package backoff provides pure retry-delay decision logic for upstream fetches.
package backoff

import "time"

// FailureKind classifies one failed upstream attempt.
type FailureKind int

const (
	// None means the attempt succeeded.
	None FailureKind = iota
	// RateLimited means the upstream explicitly signaled throttling.
	RateLimited
	// TransientNetwork covers timeouts, connection failures, and 5xx responses.
	TransientNetwork
	// Fatal covers malformed responses and authentication failures; never retried.
	Fatal
)

func (k FailureKind) String() string {
	switch k {
	case None:
		return "none"
	case RateLimited:
		return "rate_limited"
	case TransientNetwork:
		return "transient_network"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// Policy computes retry delays. It never sleeps; callers own the waiting,
// which keeps the schedule testable as a pure function.
type Policy struct {
	// RateLimitBase seeds the exponential schedule after a rate-limit failure.
	RateLimitBase time.Duration
	// TransientBase seeds the (shorter) schedule after a transient failure.
	TransientBase time.Duration
	// Factor is the per-failure delay multiplier.
	Factor float64
	// MaxDelay caps any computed delay.
	MaxDelay time.Duration
	// TransientRetries is the number of retries permitted after transient
	// failures before giving up.
	TransientRetries int
	// RateLimitRetries caps retries after rate limiting; 0 means unlimited,
	// since throttling is expected and recoverable.
	RateLimitRetries int
}

// Default returns the standard policy: 1s base doubling to a 60s cap for
// rate limits with no retry ceiling, 500ms base with 5 retries for
// transient failures.
func Default() Policy {
	return Policy{
		RateLimitBase:    time.Second,
		TransientBase:    500 * time.Millisecond,
		Factor:           2,
		MaxDelay:         60 * time.Second,
		TransientRetries: 5,
	}
}

// Next reports the delay to wait before retrying after the given consecutive
// failure, and whether a retry is permitted at all. attempt is 1-based: the
// first failed attempt at an offset is 1. Consecutive rate-limit delays are
// non-decreasing: base, base*factor, base*factor^2, ... capped at MaxDelay.
func (p Policy) Next(attempt int, kind FailureKind) (time.Duration, bool) {
	switch kind {
	case RateLimited:
		if p.RateLimitRetries > 0 && attempt > p.RateLimitRetries {
			return 0, false
		}
		return p.delay(p.RateLimitBase, attempt), true
	case TransientNetwork:
		if attempt > p.TransientRetries {
			return 0, false
		}
		return p.delay(p.TransientBase, attempt), true
	}
	// None and Fatal never retry.
	return 0, false
}

func (p Policy) delay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
