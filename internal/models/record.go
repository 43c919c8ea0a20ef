// Package models defines core data structures for messages, queries, and search results.
package models

import (
	"encoding/json"
	"strings"
)

// Record represents one message fetched from the upstream source.
// ID, Text, and Author are the searchable fields; every field the upstream
// sent (including unknown ones) is kept verbatim in raw and round-tripped
// unmodified when the record is serialized back out.
type Record struct {
	ID     string
	Text   string
	Author string

	raw map[string]json.RawMessage
}

// NewRecord builds a record from its searchable fields. Used by tests and
// anywhere a record is constructed locally rather than decoded from upstream.
func NewRecord(id, text, author string) *Record {
	return &Record{ID: id, Text: text, Author: author}
}

// UnmarshalJSON decodes an upstream message object. The id field may be a
// JSON string or number; both are accepted and kept as their string form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.raw = fields
	r.ID = stringField(fields["id"])
	r.Text = stringField(fields["message"])
	r.Author = stringField(fields["user_name"])
	return nil
}

// MarshalJSON re-emits the record exactly as the upstream sent it. Records
// built locally (no raw form) are emitted from the searchable fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return json.Marshal(r.raw)
	}
	return json.Marshal(map[string]string{
		"id":        r.ID,
		"message":   r.Text,
		"user_name": r.Author,
	})
}

// stringField decodes a raw JSON value into its string form. Quoted strings
// are unquoted; numbers and other scalars use their literal text.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
