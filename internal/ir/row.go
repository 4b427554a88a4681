package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Row maps field names to values.
// A Row never reports a missing field: Get returns Null for absent keys.
type Row map[string]Value

// Get returns the value for field, or Null when absent.
func (r Row) Get(field string) Value {
	if v, ok := r[field]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether field is physically present in the row.
func (r Row) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// Merge returns a copy of r overlaid with patch. Fields absent from patch
// keep their prior values.
func (r Row) Merge(patch Row) Row {
	out := r.Clone()
	if out == nil {
		out = make(Row, len(patch))
	}
	for k, v := range patch {
		out[k] = CloneValue(v)
	}
	return out
}

// Project returns a row holding only the named fields, absent ones as Null.
func (r Row) Project(fields []string) Row {
	out := make(Row, len(fields))
	for _, f := range fields {
		out[f] = r.Get(f)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (r Row) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Equal reports whether both rows hold the same fields with strictly equal
// values. A field holding Null equals an absent field.
func (r Row) Equal(other Row) bool {
	for k, v := range r {
		if !Equal(v, other.Get(k)) {
			return false
		}
	}
	for k, v := range other {
		if _, ok := r[k]; !ok && !IsNull(v) {
			return false
		}
	}
	return true
}

// RowFromGo converts a native map into a Row.
func RowFromGo(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for k, raw := range m {
		v, err := FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		row[k] = v
	}
	return row, nil
}

// ToGo converts the row into a native map.
func (r Row) ToGo() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = ToGo(v)
	}
	return out
}

// MarshalJSON encodes the row with sorted keys.
func (r Row) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r)
}

// UnmarshalJSON implements json.Unmarshaler for Row.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = make(Row, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		(*r)[k] = val
	}
	return nil
}
