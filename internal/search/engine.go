// Package search implements substring matching over a loaded generation.
package search

import (
	"strings"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/store"
)

// Engine answers paginated substring queries against one generation
// snapshot. It keeps no state of its own and is safe for arbitrary
// concurrent use: every call only reads the immutable generation it is
// given. Each query is a linear scan, which at the target dataset size
// (low thousands of records) stays well under a millisecond; an inverted
// index would be a drop-in replacement for the matching step if the
// dataset outgrows that.
type Engine struct{}

// NewEngine creates a query engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Search returns the records of gen whose text, author, or id contains the
// query as a case-insensitive substring, in the generation's stored order.
// Total counts all matches before pagination; Items is the [skip, skip+limit)
// slice of that list, empty (not an error) when skip is past the end.
//
// An empty query matches every record. The HTTP layer rejects empty queries
// before they get here, so that only applies to direct callers.
func (e *Engine) Search(gen *store.Generation, query *models.SearchQuery) *models.SearchResponse {
	started := time.Now()
	needle := strings.ToLower(query.Query)

	var matched []*models.Record
	for _, rec := range gen.Records {
		if matches(rec, needle) {
			matched = append(matched, rec)
		}
	}

	return &models.SearchResponse{
		Total:       len(matched),
		Items:       paginate(matched, query.Skip, query.Limit),
		Skip:        query.Skip,
		Limit:       query.Limit,
		DatasetSize: gen.Count(),
		QueryTime:   float64(time.Since(started).Microseconds()) / 1000.0,
	}
}

func matches(rec *models.Record, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Text), needle) ||
		strings.Contains(strings.ToLower(rec.Author), needle) ||
		strings.Contains(strings.ToLower(rec.ID), needle)
}

func paginate(matched []*models.Record, skip, limit int) []*models.Record {
	if skip >= len(matched) {
		return []*models.Record{}
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end]
}
