package row

import (
	"encoding/json"
	"sort"
)

// Document is one row as an open mapping from column name to Value.
// Key order is not carried by JSON objects, so any operation that needs a
// deterministic column order (insert generation, key-set comparison) uses
// Keys, which reports names sorted lexicographically.
type Document map[string]Value

// Keys returns the document's column names in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SameKeys reports whether two documents carry exactly the same key set.
func (d Document) SameKeys(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k := range d {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Writable reports whether every value in the document is of a kind
// accepted on write paths, returning the first offending column otherwise.
func (d Document) Writable() (string, bool) {
	for _, k := range d.Keys() {
		if !d[k].Writable() {
			return k, false
		}
	}
	return "", true
}

// Equal reports field-for-field equality of two documents.
func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the document as a flat JSON object.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Value(d))
}

// UnmarshalJSON decodes a flat JSON object, preserving number text.
func (d *Document) UnmarshalJSON(data []byte) error {
	m := map[string]Value{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = Document(m)
	return nil
}
