// Package fetcher retrieves single upstream pages with pacing, retry, and backoff.
package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/kensaku/internal/backoff"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/upstream"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TerminalFailure reports that a page could not be fetched within policy limits.
type TerminalFailure struct {
	Offset   int
	Kind     backoff.FailureKind
	Attempts int
	Err      error
}

func (e *TerminalFailure) Error() string {
	return fmt.Sprintf("fetch at offset %d failed after %d attempt(s) (%s): %v",
		e.Offset, e.Attempts, e.Kind, e.Err)
}

func (e *TerminalFailure) Unwrap() error { return e.Err }

// Stats is a snapshot of fetch activity, used for progress reporting so a
// load stuck behind sustained throttling stays observable.
type Stats struct {
	Attempts  int
	Retries   int
	LastDelay time.Duration
	MaxDelay  time.Duration
}

// Fetcher wraps one upstream call with proactive pacing and reactive backoff.
// Pacing applies even on the success path: a token bucket enforces the
// minimum spacing between requests so the upstream is not provoked into
// throttling in the first place.
type Fetcher struct {
	client         upstream.Client
	policy         backoff.Policy
	pacer          *rate.Limiter
	pageSize       int
	attemptTimeout time.Duration
	logger         *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger attaches a logger for retry and backoff reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a fetcher. minInterval is the proactive spacing between
// requests (<= 0 disables pacing); attemptTimeout bounds each individual
// upstream call, independent of any backoff delay.
func New(client upstream.Client, policy backoff.Policy, pageSize int, minInterval, attemptTimeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:         client,
		policy:         policy,
		pacer:          rate.NewLimiter(rate.Every(minInterval), 1),
		pageSize:       pageSize,
		attemptTimeout: attemptTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the page at offset, retrying recoverable failures per the
// backoff policy. It returns a *TerminalFailure once retries are exhausted
// or a fatal failure is seen, and the context error if ctx ends first.
func (f *Fetcher) Fetch(ctx context.Context, offset int) (*models.Page, error) {
	failures := 0
	for {
		if err := f.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := f.attempt(ctx, offset)
		if err == nil {
			f.recordAttempt(0)
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		failures++
		kind := upstream.Classify(err)
		delay, retry := f.policy.Next(failures, kind)
		if !retry {
			return nil, &TerminalFailure{Offset: offset, Kind: kind, Attempts: failures, Err: err}
		}
		if hint := upstream.RetryAfterHint(err); hint > delay {
			delay = hint
		}
		f.logger.Warn("upstream fetch failed, backing off",
			zap.Int("offset", offset),
			zap.Int("attempt", failures),
			zap.Stringer("kind", kind),
			zap.Duration("delay", delay),
			zap.Error(err))
		f.recordAttempt(delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// attempt issues one upstream call under the per-attempt timeout.
func (f *Fetcher) attempt(ctx context.Context, offset int) (*models.Page, error) {
	if f.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
	}
	return f.client.GetPage(ctx, offset, f.pageSize)
}

func (f *Fetcher) recordAttempt(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Attempts++
	if delay > 0 {
		f.stats.Retries++
		f.stats.LastDelay = delay
		if delay > f.stats.MaxDelay {
			f.stats.MaxDelay = delay
		}
	}
}

// Stats returns a snapshot of cumulative fetch activity.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
