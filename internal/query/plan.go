package query

import (
	"slices"
	"strings"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/scope"
)

// Mode is the committed query mode.
type Mode string

const (
	ModeUnset  Mode = ""
	ModeSelect Mode = "select"
	ModeInsert Mode = "insert"
	ModeUpdate Mode = "update"
	ModeDelete Mode = "delete"
)

// String returns the mode name, or "unset".
func (m Mode) String() string {
	if m == ModeUnset {
		return "unset"
	}
	return string(m)
}

// Projection is the shape a select produces.
type Projection string

const (
	ProjectRows      Projection = "rows"
	ProjectCount     Projection = "count"
	ProjectExists    Projection = "exists"
	ProjectAggregate Projection = "aggregate"
	ProjectField     Projection = "field"
	ProjectGroup     Projection = "group"
)

// AggregateFunc is a supported aggregate function.
type AggregateFunc string

const (
	Sum AggregateFunc = "SUM"
	Avg AggregateFunc = "AVG"
	Min AggregateFunc = "MIN"
	Max AggregateFunc = "MAX"

	// CountRows counts the rows of a group. Only grouped projections
	// accept it.
	CountRows AggregateFunc = "COUNT"
)

// ParseAggregate normalizes fn. Unknown names fail UNSUPPORTED_AGGREGATE.
func ParseAggregate(fn string) (AggregateFunc, error) {
	switch f := AggregateFunc(strings.ToUpper(strings.TrimSpace(fn))); f {
	case Sum, Avg, Min, Max:
		return f, nil
	default:
		return "", NewUnsupportedAggregateError(fn)
	}
}

// Aggregate describes an aggregate projection.
type Aggregate struct {
	Func  AggregateFunc
	Field string
	// Coalesce counts null values as 0 and turns a null result into 0.
	Coalesce bool
}

// GroupColumn is a computed column of a grouped projection.
type GroupColumn struct {
	Alias string
	// Aggregate is applied to the rows of each group. CountRows ignores
	// the field.
	Aggregate Aggregate
}

// Plan is the query state shared with the engine. Engines read it in
// their Init and Do hooks; only the Query mutates it.
type Plan struct {
	Model *model.Model
	Scope *scope.Scope
	Order []model.OrderKey
	Limit model.Limit

	Mode       Mode
	Projection Projection
	// Fields restricts a rows projection; nil means every declared field.
	Fields []string
	// Alias names the single result column of scalar projections.
	Alias     string
	Aggregate Aggregate

	// Group lists the fields a grouped projection groups by, followed in
	// the output by GroupColumns.
	Group        []string
	GroupColumns []GroupColumn

	// Data is the insert row or the update patch.
	Data ir.Row
}

// Columns returns the projected column names in order.
func (p *Plan) Columns() []string {
	switch p.Projection {
	case ProjectCount, ProjectExists, ProjectAggregate, ProjectField:
		return []string{p.Alias}
	case ProjectGroup:
		cols := slices.Clone(p.Group)
		for _, gc := range p.GroupColumns {
			cols = append(cols, gc.Alias)
		}
		return cols
	}
	if p.Fields != nil {
		return slices.Clone(p.Fields)
	}
	return p.Model.FieldNames()
}

// GroupOrder returns the order of a grouped projection: the explicit keys
// followed by every remaining group field ascending. Groups are distinct
// on their fields, so the order never ties.
func (p *Plan) GroupOrder() []model.OrderKey {
	keys := slices.Clone(p.Order)
	for _, f := range p.Group {
		if !slices.ContainsFunc(keys, func(k model.OrderKey) bool { return k.Field == f }) {
			keys = append(keys, model.OrderKey{Field: f, Direction: model.Asc})
		}
	}
	return keys
}

// SourceField returns the field a field projection reads.
func (p *Plan) SourceField() string {
	if p.Projection == ProjectAggregate {
		return p.Aggregate.Field
	}
	if p.Projection == ProjectField && len(p.Fields) == 1 {
		return p.Fields[0]
	}
	return ""
}

// Clone returns an independent copy. The model snapshot is cloned too.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Model = p.Model.Clone()
	cp.Scope = p.Scope.Clone()
	cp.Order = slices.Clone(p.Order)
	cp.Fields = slices.Clone(p.Fields)
	cp.Group = slices.Clone(p.Group)
	cp.GroupColumns = slices.Clone(p.GroupColumns)
	cp.Data = p.Data.Clone()
	return &cp
}

// Result is what Execute returns.
type Result struct {
	// Columns and Rows are set for select.
	Columns []string
	Rows    []ir.Row
	// InsertID is the identity assigned by insert, or Null.
	InsertID ir.Value
	// Affected counts rows changed by update and delete.
	Affected int64
}

// Debug is a diagnostic snapshot of a query.
type Debug struct {
	Mode  string   `json:"mode"`
	Model string   `json:"model"`
	Scope string   `json:"scope"`
	Order []string `json:"order"`
	Limit string   `json:"limit"`
}

// Canonical renders the snapshot as canonical JSON.
func (d *Debug) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(map[string]any{
		"mode":  d.Mode,
		"model": d.Model,
		"scope": d.Scope,
		"order": d.Order,
		"limit": d.Limit,
	})
}

func defaultAlias(p *Plan) string {
	switch p.Projection {
	case ProjectCount:
		return "count"
	case ProjectExists:
		return "exists"
	case ProjectAggregate:
		return strings.ToLower(string(p.Aggregate.Func))
	case ProjectField:
		return p.SourceField()
	}
	return ""
}
