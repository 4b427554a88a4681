package arraydb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scopeq/internal/expr"
	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
	"github.com/roach88/scopeq/internal/scope"
)

// Persistence runs queries against a Storage.
type Persistence struct {
	storage *Storage
}

var _ query.Persistence = (*Persistence)(nil)

// New creates a persistence over storage.
func New(storage *Storage) *Persistence {
	return &Persistence{storage: storage}
}

// Storage returns the backing storage.
func (p *Persistence) Storage() *Storage {
	return p.storage
}

// NewEngine implements query.Persistence.
func (p *Persistence) NewEngine(m *model.Model) (query.Engine, error) {
	ev, err := expr.NewEvaluator(m.FieldNames())
	if err != nil {
		return nil, err
	}
	return &Engine{
		storage: p.storage,
		matcher: scope.Matcher{Expressions: ev},
	}, nil
}

// Engine evaluates query plans in memory.
type Engine struct {
	query.BaseEngine
	storage *Storage
	matcher scope.Matcher
}

var _ query.Engine = (*Engine)(nil)

// InitWhere rejects unsupported operators, bad patterns and malformed
// expressions before execution.
func (e *Engine) InitWhere(p *query.Plan) error {
	return e.matcher.Check(p.Scope)
}

// DoExecute implements query.Engine.
func (e *Engine) DoExecute(ctx context.Context, p *query.Plan) (*query.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := p.Model
	switch p.Mode {
	case query.ModeSelect:
		rows, err := e.DoGet(ctx, p)
		if err != nil {
			return nil, err
		}
		return &query.Result{Columns: p.Columns(), Rows: rows, InsertID: ir.Null{}}, nil

	case query.ModeInsert:
		id, err := e.storage.Insert(m, p.Data)
		if err != nil {
			return nil, err
		}
		slog.Debug("array insert", "table", m.Table, "id", id.String())
		if !m.HasIDField() {
			id = ir.Null{}
		}
		return &query.Result{InsertID: id, Affected: 1}, nil

	case query.ModeUpdate, query.ModeDelete:
		recs, err := e.scoped(p).Records()
		if err != nil {
			return nil, err
		}
		var affected int64
		if p.Mode == query.ModeDelete {
			ids := make([]ir.Value, len(recs))
			for i, rec := range recs {
				ids[i] = rec.ID
			}
			affected = int64(e.storage.Delete(m.Table, ids...))
		} else {
			for _, rec := range recs {
				if e.storage.Update(m.Table, rec.ID, p.Data) {
					affected++
				}
			}
		}
		slog.Debug("array write", "table", m.Table, "mode", p.Mode.String(), "affected", affected)
		return &query.Result{InsertID: ir.Null{}, Affected: affected}, nil

	default:
		return nil, fmt.Errorf("unsupported mode %s", p.Mode)
	}
}

// DoGet implements query.Engine.
func (e *Engine) DoGet(ctx context.Context, p *query.Plan) ([]ir.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq := e.scoped(p)

	switch p.Projection {
	case query.ProjectCount:
		n, err := seq.Count()
		if err != nil {
			return nil, err
		}
		return []ir.Row{{p.Alias: ir.Int(int64(n))}}, nil

	case query.ProjectExists:
		found, err := seq.Exists()
		if err != nil {
			return nil, err
		}
		var v ir.Int
		if found {
			v = 1
		}
		return []ir.Row{{p.Alias: v}}, nil

	case query.ProjectAggregate:
		v, err := seq.Aggregate(p.Aggregate)
		if err != nil {
			return nil, err
		}
		return []ir.Row{{p.Alias: v}}, nil

	case query.ProjectGroup:
		return seq.Group(p.Group, p.GroupColumns).
			Order(p.GroupOrder()).
			Limit(p.Limit).
			Rows()

	case query.ProjectField:
		field := p.SourceField()
		return seq.Order(p.Order).
			Limit(p.Limit).
			Project([]string{field}, map[string]string{field: p.Alias}).
			Rows()

	default:
		return seq.Order(p.Order).
			Limit(p.Limit).
			Project(p.Columns(), nil).
			Rows()
	}
}

// DoGetRow implements query.Engine.
func (e *Engine) DoGetRow(ctx context.Context, p *query.Plan) (ir.Row, error) {
	rows, err := e.DoGet(ctx, p)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// DoGetOne implements query.Engine.
func (e *Engine) DoGetOne(ctx context.Context, p *query.Plan) (ir.Value, error) {
	row, err := e.DoGetRow(ctx, p)
	if err != nil {
		return nil, err
	}
	return query.FirstValue(p, row), nil
}

// scoped returns the table filtered by the plan scope.
func (e *Engine) scoped(p *query.Plan) *Sequence {
	return NewSequence(e.storage.Records(p.Model.Table)).Filter(p.Scope, e.matcher)
}
