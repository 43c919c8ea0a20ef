package models

// Page is one batch of records returned by a single upstream call.
type Page struct {
	Items []*Record
	// NextOffset is the offset to request for the following page.
	NextOffset int
	// HasMore reports whether further pages remain after this one.
	HasMore bool
	// Total is the source-reported size of the full collection, 0 if the
	// upstream did not report one.
	Total int
}
