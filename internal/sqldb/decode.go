package sqldb

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
)

// columnKinds maps result columns to the kind their values decode to.
// Columns without an entry decode by their driver type.
func columnKinds(p *query.Plan) map[string]ir.Kind {
	m := p.Model
	kinds := make(map[string]ir.Kind)
	switch p.Projection {
	case query.ProjectCount, query.ProjectExists:
		kinds[p.Alias] = ir.KindInt
	case query.ProjectAggregate:
		if p.Aggregate.Func == query.Min || p.Aggregate.Func == query.Max {
			if f, err := m.Field(p.Aggregate.Field); err == nil {
				kinds[p.Alias] = f.Type.Kind()
			}
		}
	case query.ProjectField:
		if f, err := m.Field(p.SourceField()); err == nil {
			kinds[p.Alias] = f.Type.Kind()
		}
	case query.ProjectGroup:
		for _, col := range p.Group {
			if f, err := m.Field(col); err == nil {
				kinds[col] = f.Type.Kind()
			}
		}
		for _, gc := range p.GroupColumns {
			switch gc.Aggregate.Func {
			case query.CountRows:
				kinds[gc.Alias] = ir.KindInt
			case query.Min, query.Max:
				if f, err := m.Field(gc.Aggregate.Field); err == nil {
					kinds[gc.Alias] = f.Type.Kind()
				}
			}
		}
	default:
		for _, col := range p.Columns() {
			if f, err := m.Field(col); err == nil {
				kinds[col] = f.Type.Kind()
			}
		}
	}
	return kinds
}

func idKind(m *model.Model) ir.Kind {
	if t, ok := m.IDType(); ok {
		return t.Kind()
	}
	return ir.KindNull
}

// Decode converts a driver value into a value of kind. SQLite stores
// booleans as integers and Postgres returns text as bytes; both decode to
// the declared kind. KindNull decodes by driver type.
func Decode(raw any, kind ir.Kind) (ir.Value, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return ir.Null{}, nil
	}

	switch kind {
	case ir.KindBool:
		switch v := raw.(type) {
		case bool:
			return ir.Bool(v), nil
		case int64:
			return ir.Bool(v != 0), nil
		case float64:
			return ir.Bool(v != 0), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("decode boolean %q: %w", v, err)
			}
			return ir.Bool(b), nil
		}
	case ir.KindInt:
		switch v := raw.(type) {
		case int64:
			return ir.Int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return ir.Int(int64(v)), nil
			}
			return ir.Float(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode integer %q: %w", v, err)
			}
			return ir.Int(n), nil
		}
	case ir.KindFloat:
		switch v := raw.(type) {
		case int64:
			return ir.Float(float64(v)), nil
		case float64:
			return ir.Float(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("decode float %q: %w", v, err)
			}
			return ir.Float(f), nil
		}
	case ir.KindText:
		switch v := raw.(type) {
		case string:
			return ir.Text(v), nil
		case int64, float64, bool:
			val, err := ir.FromGo(v)
			if err != nil {
				return nil, err
			}
			return ir.Text(val.String()), nil
		}
	}
	return ir.FromGo(raw)
}
