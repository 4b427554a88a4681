package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/scope"
)

// CompileModel parses a CUE value into a Model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: invoice: { table: "invoice", fields: {...} }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.invoice")))
//
// Recognized keys: table (defaults to the label), id_field (defaults to
// "id", "" disables identity), read_only, fields (in declaration order),
// order, conditions, limit.
func CompileModel(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var name string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	table := name
	if tv := v.LookupPath(cue.ParsePath("table")); tv.Exists() {
		s, err := tv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		table = s
	}
	if table == "" {
		return nil, &CompileError{Field: "table", Message: "table is required", Pos: v.Pos()}
	}

	opts := []model.Option{model.WithName(name)}
	if idv := v.LookupPath(cue.ParsePath("id_field")); idv.Exists() {
		id, err := idv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		opts = append(opts, model.WithIDField(id))
	}
	if rov := v.LookupPath(cue.ParsePath("read_only")); rov.Exists() {
		ro, err := rov.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if ro {
			opts = append(opts, model.WithReadOnly())
		}
	}

	fields, err := parseFields(v)
	if err != nil {
		return nil, err
	}

	m, err := model.New(table, fields, opts...)
	if err != nil {
		return nil, &CompileError{Field: "fields", Message: err.Error(), Pos: v.Pos()}
	}
	if name == "" {
		m.Name = table
	}

	if err := parseOrder(v, m); err != nil {
		return nil, err
	}
	if err := parseConditions(v, m); err != nil {
		return nil, err
	}
	if err := parseLimit(v, m); err != nil {
		return nil, err
	}

	return m, nil
}

// CompileModels compiles every model under the top-level "model" struct in
// declaration order.
func CompileModels(root cue.Value) ([]*model.Model, error) {
	modelsVal := root.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, nil
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []*model.Model
	for iter.Next() {
		m, err := CompileModel(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("model.%s: %w", iter.Label(), err)
		}
		models = append(models, m)
	}
	return models, nil
}

// CompileSource compiles CUE source text holding a top-level "model"
// struct. filename is used in error positions.
func CompileSource(filename, src string) ([]*model.Model, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileModels(v)
}

func parseFields(v cue.Value) ([]model.Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields are required", Pos: v.Pos()}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []model.Field
	for iter.Next() {
		f := model.Field{Name: iter.Label()}
		fv := iter.Value()

		if tv := fv.LookupPath(cue.ParsePath("type")); tv.Exists() {
			typeName, err := tv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			typ, err := model.ParseFieldType(typeName)
			if err != nil {
				return nil, &CompileError{Field: "type", Message: err.Error(), Pos: tv.Pos()}
			}
			f.Type = typ
		} else {
			f.Type = model.TypeString
		}

		if mv := fv.LookupPath(cue.ParsePath("mandatory")); mv.Exists() {
			mandatory, err := mv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			f.Mandatory = mandatory
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseOrder(v cue.Value, m *model.Model) error {
	orderVal := v.LookupPath(cue.ParsePath("order"))
	if !orderVal.Exists() {
		return nil
	}
	iter, err := orderVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		ov := iter.Value()
		field, err := ov.LookupPath(cue.ParsePath("field")).String()
		if err != nil {
			return &CompileError{Field: "order", Message: "order entries need a field", Pos: ov.Pos()}
		}
		desc := false
		if dv := ov.LookupPath(cue.ParsePath("desc")); dv.Exists() {
			if desc, err = dv.Bool(); err != nil {
				return formatCUEError(err)
			}
		}
		if err := m.AddOrder(field, desc); err != nil {
			return &CompileError{Field: "order", Message: err.Error(), Pos: ov.Pos()}
		}
	}
	return nil
}

func parseConditions(v cue.Value, m *model.Model) error {
	condVal := v.LookupPath(cue.ParsePath("conditions"))
	if !condVal.Exists() {
		return nil
	}
	raw, err := toGo(condVal)
	if err != nil {
		return err
	}
	items, ok := raw.([]any)
	if !ok {
		return &CompileError{Field: "conditions", Message: "conditions must be a list", Pos: condVal.Pos()}
	}
	s, err := scope.Parse(items, scope.And)
	if err != nil {
		return &CompileError{Field: "conditions", Message: err.Error(), Pos: condVal.Pos()}
	}
	if err := m.AddScope(s); err != nil {
		return &CompileError{Field: "conditions", Message: err.Error(), Pos: condVal.Pos()}
	}
	return nil
}

func parseLimit(v cue.Value, m *model.Model) error {
	limitVal := v.LookupPath(cue.ParsePath("limit"))
	if !limitVal.Exists() {
		return nil
	}
	count := model.Unlimited
	if cv := limitVal.LookupPath(cue.ParsePath("count")); cv.Exists() {
		n, err := cv.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		count = int(n)
	}
	offset := 0
	if ov := limitVal.LookupPath(cue.ParsePath("offset")); ov.Exists() {
		n, err := ov.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		offset = int(n)
	}
	if err := m.SetLimit(count, offset); err != nil {
		return &CompileError{Field: "limit", Message: err.Error(), Pos: limitVal.Pos()}
	}
	return nil
}

// toGo converts a concrete CUE value into plain Go values: nil, bool,
// int64, float64, string and []any.
func toGo(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		items := []any{}
		for iter.Next() {
			item, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, &CompileError{
			Field:   "conditions",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
