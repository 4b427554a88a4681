package model

import (
	"fmt"
	"strings"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// OrderKey is one ordering criterion.
type OrderKey struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

// IsDesc reports a descending key. The comparison is case-insensitive;
// anything other than "desc" sorts ascending.
func (k OrderKey) IsDesc() bool {
	return strings.EqualFold(strings.TrimSpace(k.Direction), Desc)
}

// String renders "field" or "field desc".
func (k OrderKey) String() string {
	if k.IsDesc() {
		return k.Field + " " + Desc
	}
	return k.Field
}

// Unlimited marks a limit without a row cap.
const Unlimited = -1

// Limit caps result cardinality.
//
// The zero value means "no restriction". A Count of Unlimited with a
// positive Offset skips rows without capping them. A Count of 0 with a
// positive Offset yields no rows.
type Limit struct {
	Count  int `json:"count"`
	Offset int `json:"offset,omitempty"`
}

// NoLimit returns the unrestricted limit.
func NoLimit() Limit {
	return Limit{}
}

// NewLimit validates and builds a limit. Use Unlimited for "no cap".
func NewLimit(count, offset int) (Limit, error) {
	if count < Unlimited {
		return Limit{}, fmt.Errorf("limit count must be >= 0 or Unlimited, got %d", count)
	}
	if offset < 0 {
		return Limit{}, fmt.Errorf("limit offset must be >= 0, got %d", offset)
	}
	return Limit{Count: count, Offset: offset}, nil
}

// Args reports the effective window. restricted is false when neither a
// count nor an offset applies; capped is false when rows are only skipped.
func (l Limit) Args() (count, offset int, restricted, capped bool) {
	if (l.Count == 0 || l.Count == Unlimited) && l.Offset == 0 {
		return 0, 0, false, false
	}
	if l.Count == Unlimited {
		return 0, l.Offset, true, false
	}
	return l.Count, l.Offset, true, true
}

// IsSet reports whether the limit restricts anything.
func (l Limit) IsSet() bool {
	_, _, restricted, _ := l.Args()
	return restricted
}

// String renders the limit for debug output.
func (l Limit) String() string {
	count, offset, restricted, capped := l.Args()
	switch {
	case !restricted:
		return "none"
	case !capped:
		return fmt.Sprintf("offset %d", offset)
	case offset == 0:
		return fmt.Sprintf("%d", count)
	default:
		return fmt.Sprintf("%d offset %d", count, offset)
	}
}
