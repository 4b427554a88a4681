package parity

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scopeq/internal/ir"
)

// checkExpect compares an outcome with a step expectation and returns one
// message per mismatch.
func checkExpect(e *Expect, got Outcome) []string {
	var errs []string

	if e.Error != got.Error {
		if e.Error == "" {
			return []string{fmt.Sprintf("unexpected error %s", got.Error)}
		}
		return []string{fmt.Sprintf("expected error %s, got %q", e.Error, got.Error)}
	}

	if e.Rows != nil {
		if len(e.Rows) != len(got.Rows) {
			errs = append(errs, fmt.Sprintf("expected %d rows, got %d", len(e.Rows), len(got.Rows)))
		} else {
			for i, want := range e.Rows {
				for _, msg := range matchRow(want, got.Rows[i]) {
					errs = append(errs, fmt.Sprintf("rows[%d]: %s", i, msg))
				}
			}
		}
	}

	if msg, ok := matchNode("value", &e.Value, got.Value); !ok {
		errs = append(errs, msg)
	}
	if msg, ok := matchNode("insert_id", &e.InsertID, got.InsertID); !ok {
		errs = append(errs, msg)
	}

	if e.Affected != nil {
		switch {
		case got.Affected == nil:
			errs = append(errs, fmt.Sprintf("expected %d affected rows, got none", *e.Affected))
		case *got.Affected != *e.Affected:
			errs = append(errs, fmt.Sprintf("expected %d affected rows, got %d", *e.Affected, *got.Affected))
		}
	}
	return errs
}

func matchRow(want map[string]any, got ir.Row) []string {
	var errs []string
	keys := make(ir.Row, len(want))
	for k := range want {
		keys[k] = ir.Null{}
	}
	for _, k := range keys.SortedKeys() {
		v, err := ir.FromGo(want[k])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
			continue
		}
		if !got.Has(k) {
			errs = append(errs, fmt.Sprintf("%s: column missing", k))
			continue
		}
		if !ir.Equal(v, got.Get(k)) {
			errs = append(errs, fmt.Sprintf("%s: expected %s, got %s", k, describe(v), describe(got.Get(k))))
		}
	}
	return errs
}

// matchNode checks an optional scalar expectation. An absent node always
// matches; an explicit null matches only Null.
func matchNode(name string, n *yaml.Node, got ir.Value) (string, bool) {
	if n.Kind == 0 {
		return "", true
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return fmt.Sprintf("%s: %v", name, err), false
	}
	want, err := ir.FromGo(raw)
	if err != nil {
		return fmt.Sprintf("%s: %v", name, err), false
	}
	if got == nil {
		return fmt.Sprintf("expected %s %s, got none", name, describe(want)), false
	}
	if !ir.Equal(want, got) {
		return fmt.Sprintf("expected %s %s, got %s", name, describe(want), describe(got)), false
	}
	return "", true
}

func describe(v ir.Value) string {
	b, err := ir.MarshalValue(v)
	if err != nil {
		return v.String()
	}
	return fmt.Sprintf("%s(%s)", v.Kind(), b)
}
