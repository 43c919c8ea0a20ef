package ingest

import (
	"context"
	"sync/atomic"

	"github.com/hyperjump/kensaku/internal/store"
	"go.uber.org/zap"
)

// Loader runs loads and installs completed generations into the store.
// Refresh is safe to invoke concurrently: each load builds its own
// generation, and whichever completes last becomes active via the store's
// atomic swap.
type Loader struct {
	pipeline *Pipeline
	store    *store.Store
	logger   *zap.Logger

	inFlight   atomic.Int32
	refreshing atomic.Bool
}

// NewLoader creates a loader installing into st.
func NewLoader(pipeline *Pipeline, st *store.Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{pipeline: pipeline, store: st, logger: logger}
}

// Refresh runs one full load and installs the result. A failed load leaves
// the previously installed generation serving queries unchanged.
func (l *Loader) Refresh(ctx context.Context) error {
	l.inFlight.Add(1)
	defer l.inFlight.Add(-1)

	gen, err := l.pipeline.Load(ctx)
	if err != nil {
		l.logger.Error("load failed, keeping previous generation", zap.Error(err))
		return err
	}
	l.store.Install(gen)
	l.logger.Info("generation installed",
		zap.String("generation_id", gen.ID),
		zap.Int("records", gen.Count()),
		zap.Int("source_total", gen.SourceTotal))
	return nil
}

// Loading reports whether any load is currently in flight.
func (l *Loader) Loading() bool {
	return l.inFlight.Load() > 0
}

// TryRefreshAsync starts a background refresh unless one started this way is
// already running. Returns false when a refresh is already in flight.
func (l *Loader) TryRefreshAsync(ctx context.Context) bool {
	if !l.refreshing.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer l.refreshing.Store(false)
		_ = l.Refresh(ctx)
	}()
	return true
}
