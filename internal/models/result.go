package models

// SearchResponse is the response for a search request. Items preserve the
// load order of the generation they were matched against.
type SearchResponse struct {
	Total       int       `json:"total"`
	Items       []*Record `json:"items"`
	Skip        int       `json:"skip"`
	Limit       int       `json:"limit"`
	DatasetSize int       `json:"dataset_size"`
	QueryTime   float64   `json:"response_time_ms"`
}
