// Package store holds the active message generation and its swap logic.
package store

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
)

// ErrNotReady is returned by Current before the first successful install.
var ErrNotReady = errors.New("no generation loaded yet")

// Generation is one complete, immutable snapshot of the loaded dataset.
// Records are in upstream load order and must never be mutated after the
// generation is built.
type Generation struct {
	ID          string
	Records     []*models.Record
	StartedAt   time.Time
	CompletedAt time.Time
	// SourceTotal is the collection size the upstream reported during the
	// load, 0 if it never reported one.
	SourceTotal int
}

// Count returns the number of distinct records in the generation.
func (g *Generation) Count() int {
	if g == nil {
		return 0
	}
	return len(g.Records)
}

// Store owns the active generation pointer. Install is a single atomic swap:
// a generation handed out by Current stays valid for the caller even if a
// newer generation is installed mid-query.
type Store struct {
	active atomic.Pointer[Generation]
}

// New creates an empty store. Queries fail with ErrNotReady until the first
// install.
func New() *Store {
	return &Store{}
}

// Install atomically makes g the active generation. The previous generation
// keeps serving any queries that already hold it.
func (s *Store) Install(g *Generation) {
	s.active.Store(g)
}

// Current returns the active generation for one logical query. The returned
// reference is stable for the duration of that query.
func (s *Store) Current() (*Generation, error) {
	g := s.active.Load()
	if g == nil {
		return nil, ErrNotReady
	}
	return g, nil
}

// Ready reports whether at least one generation has been installed.
func (s *Store) Ready() bool {
	return s.active.Load() != nil
}
