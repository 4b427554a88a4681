package parity

import (
	"slices"

	"github.com/roach88/scopeq/internal/ir"
)

// Outcome is what one backend produced for a step.
type Outcome struct {
	// Rows is set by select, group, field and find steps.
	Rows []ir.Row
	// Value is set by count, exists and aggregate steps.
	Value ir.Value
	// InsertID is set by insert steps. Generated string identities are
	// masked because every backend draws its own token.
	InsertID ir.Value
	// Affected is set by write steps.
	Affected *int64
	// Error is the error code of a failed step.
	Error string
	// Cause is the failure itself. It is never compared or rendered.
	Cause error
}

// GeneratedID replaces generated string identities in outcomes.
const GeneratedID = "<generated>"

func (o Outcome) canonicalMap() map[string]any {
	m := map[string]any{}
	if o.Rows != nil {
		rows := make([]any, len(o.Rows))
		for i, r := range o.Rows {
			rows[i] = r
		}
		m["rows"] = rows
	}
	if o.Value != nil {
		m["value"] = o.Value
	}
	if o.InsertID != nil {
		m["insert_id"] = o.InsertID
	}
	if o.Affected != nil {
		m["affected"] = *o.Affected
	}
	if o.Error != "" {
		m["error"] = o.Error
	}
	return m
}

// Canonical renders the outcome as canonical JSON.
func (o Outcome) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(o.canonicalMap())
}

// Equal reports whether two outcomes agree. Values compare strictly, so
// Int(20) and Float(20) differ even though both render as 20. Rows must
// hold the same columns in the same order of rows.
func (o Outcome) Equal(other Outcome) bool {
	if o.Error != other.Error {
		return false
	}
	if (o.Affected == nil) != (other.Affected == nil) ||
		(o.Affected != nil && *o.Affected != *other.Affected) {
		return false
	}
	if !sameValue(o.Value, other.Value) || !sameValue(o.InsertID, other.InsertID) {
		return false
	}
	if (o.Rows == nil) != (other.Rows == nil) || len(o.Rows) != len(other.Rows) {
		return false
	}
	for i := range o.Rows {
		if !slices.Equal(o.Rows[i].SortedKeys(), other.Rows[i].SortedKeys()) || !o.Rows[i].Equal(other.Rows[i]) {
			return false
		}
	}
	return true
}

func sameValue(a, b ir.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return ir.Equal(a, b)
}

// TraceEvent records the agreed outcome of one step.
type TraceEvent struct {
	Seq     int
	Step    string
	Model   string
	Action  string
	Outcome Outcome
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every backend agreed on every step and every
	// expectation held.
	Pass bool

	// Backends names the backends in the order they ran.
	Backends []string

	// Trace holds one event per step, taken from the first backend.
	Trace []TraceEvent

	// Errors lists disagreements and failed expectations.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
