package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RowData is an ordered string-to-string mapping of one input row, keyed by
// header. Unlike a plain map it preserves column order through JSON
// round-trips, so a reloaded manifest reproduces the original row layout.
type RowData struct {
	keys   []string
	values map[string]string
}

// NewRowData returns an empty row.
func NewRowData() *RowData {
	return &RowData{values: make(map[string]string)}
}

// Set stores a value under key, appending the key on first insertion.
func (r *RowData) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key and whether it is present.
func (r *RowData) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in insertion order. The returned slice is a
// copy.
func (r *RowData) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of columns.
func (r *RowData) Len() int {
	return len(r.keys)
}

// Clone returns an independent copy of the row.
func (r *RowData) Clone() *RowData {
	out := NewRowData()
	for _, k := range r.keys {
		out.Set(k, r.values[k])
	}
	return out
}

// Equal reports whether two rows have the same columns, order, and values.
func (r *RowData) Equal(other *RowData) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k || r.values[k] != other.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the row as a JSON object with keys in insertion order.
func (r *RowData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the key order of the
// document.
func (r *RowData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row data: expected JSON object, got %v", tok)
	}

	r.keys = nil
	r.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row data: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("row data: value for %q: %w", key, err)
		}
		r.Set(key, value)
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
