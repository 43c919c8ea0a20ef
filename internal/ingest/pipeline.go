// Package ingest drives the full upstream load into an immutable generation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kensaku/internal/backoff"
	"github.com/hyperjump/kensaku/internal/fetcher"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/store"
	"go.uber.org/zap"
)

// LoadFailure reports an aborted load. No partial generation is ever built
// from a failed load.
type LoadFailure struct {
	// Offset is the page offset the load had reached when it failed.
	Offset  int
	Kind    backoff.FailureKind
	Timeout bool
	Err     error
}

func (e *LoadFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("load timed out at offset %d", e.Offset)
	}
	return fmt.Sprintf("load failed at offset %d (%s): %v", e.Offset, e.Kind, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// Pipeline performs one sequential full load of the upstream collection.
// Pages are fetched in strictly increasing offset order; parallel page
// fetches would defeat the pacing policy.
type Pipeline struct {
	fetcher     *fetcher.Fetcher
	loadTimeout time.Duration
	logger      *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger attaches a logger for load progress reporting.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline driving f from offset zero through
// exhaustion. loadTimeout bounds the whole load (<= 0 means no deadline
// beyond ctx).
func NewPipeline(f *fetcher.Fetcher, loadTimeout time.Duration, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:     f,
		loadTimeout: loadTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load fetches every page from offset zero through exhaustion and returns a
// complete generation, or a *LoadFailure. Duplicate record IDs across pages
// keep the first occurrence and are counted once.
func (p *Pipeline) Load(ctx context.Context) (*store.Generation, error) {
	if p.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.loadTimeout)
		defer cancel()
	}

	started := time.Now()
	seen := make(map[string]struct{})
	var records []*models.Record
	offset := 0
	sourceTotal := 0

	for {
		page, err := p.fetcher.Fetch(ctx, offset)
		if err != nil {
			return nil, p.failure(offset, err)
		}
		for _, rec := range page.Items {
			if _, dup := seen[rec.ID]; dup {
				// First seen wins; upstream retries can repeat records.
				continue
			}
			seen[rec.ID] = struct{}{}
			records = append(records, rec)
		}
		if page.Total > 0 {
			sourceTotal = page.Total
		}
		stats := p.fetcher.Stats()
		p.logger.Info("page loaded",
			zap.Int("offset", offset),
			zap.Int("loaded", len(records)),
			zap.Int("source_total", sourceTotal),
			zap.Int("attempts", stats.Attempts),
			zap.Int("retries", stats.Retries))

		if !page.HasMore {
			break
		}
		offset = page.NextOffset
	}

	gen := &store.Generation{
		ID:          uuid.NewString(),
		Records:     records,
		StartedAt:   started,
		CompletedAt: time.Now(),
		SourceTotal: sourceTotal,
	}
	p.logger.Info("load complete",
		zap.String("generation_id", gen.ID),
		zap.Int("records", gen.Count()),
		zap.Duration("elapsed", gen.CompletedAt.Sub(gen.StartedAt)))
	return gen, nil
}

func (p *Pipeline) failure(offset int, err error) error {
	var term *fetcher.TerminalFailure
	if errors.As(err, &term) {
		return &LoadFailure{Offset: offset, Kind: term.Kind, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &LoadFailure{Offset: offset, Timeout: true, Err: err}
	}
	return &LoadFailure{Offset: offset, Err: err}
}
