package domain

import (
	"strconv"
)

// Record is one row in the external tabular store. The field bag is untyped
// on purpose: the table schema is owned by the external store, not by us.
type Record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// Attachment is a file reference held in a record field. Attachment fields
// always hold an ordered list of these.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Clone returns a shallow copy of the record with its own field map, so
// callers can strip or rewrite fields without mutating the source.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}

// NumberField reads a numeric field. JSON numbers decode as float64, but the
// external store also returns numbers inside strings for formula fields and
// inside single-element arrays for lookup fields, so all three shapes are
// accepted. Missing or unparsable values yield the fallback.
func NumberField(fields map[string]any, name string, fallback float64) float64 {
	return numberValue(fields[name], fallback)
}

func numberValue(raw any, fallback float64) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	case []any:
		if len(v) > 0 {
			return numberValue(v[0], fallback)
		}
	}
	return fallback
}

// StringField reads a string field, unwrapping single-element lookup arrays
// the external store produces for denormalized linked-record fields.
func StringField(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// LinkedID reads the first record id from a linked-record field. Linked
// fields hold a list of opaque ids even when the link is single-valued.
func LinkedID(fields map[string]any, name string) string {
	return StringField(fields, name)
}

// AttachmentField reads an attachment list out of a decoded field value.
// Returns an empty slice when the field is absent or not attachment-shaped.
func AttachmentField(fields map[string]any, name string) []Attachment {
	raw, ok := fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		att := Attachment{}
		if s, ok := m["url"].(string); ok {
			att.URL = s
		}
		if s, ok := m["filename"].(string); ok {
			att.Filename = s
		}
		if att.URL != "" {
			out = append(out, att)
		}
	}
	return out
}

// AttachmentValues converts attachments back to the generic field
// representation used when writing a record.
func AttachmentValues(atts []Attachment) []any {
	out := make([]any, 0, len(atts))
	for _, a := range atts {
		m := map[string]any{"url": a.URL}
		if a.Filename != "" {
			m["filename"] = a.Filename
		}
		out = append(out, m)
	}
	return out
}
