package models

import "fmt"

const (
	// DefaultLimit is the number of items returned when the caller does not
	// specify a limit.
	DefaultLimit = 100
	// MaxLimit is the hard ceiling on items per page.
	MaxLimit = 1000
)

// SearchQuery represents one search request after boundary validation.
type SearchQuery struct {
	Query string `json:"query"`
	Skip  int    `json:"skip,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error for an empty query or negative skip; limit is normalized
// into [1, MaxLimit].
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Skip < 0 {
		return fmt.Errorf("skip cannot be negative")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return nil
}
