package query

import (
	"context"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
)

// Engine is a query backend. The Init hooks run while the query is being
// built, in the order the builder calls them, and may reject the plan
// early. The Do hooks run once from a terminal call.
//
// Implementations: arraydb.Engine (in-memory) and sqldb.Engine (SQL).
type Engine interface {
	InitWhere(p *Plan) error
	InitOrder(p *Plan) error
	InitLimit(p *Plan) error
	InitSelect(p *Plan) error
	InitInsert(p *Plan) error
	InitUpdate(p *Plan) error
	InitDelete(p *Plan) error
	InitExists(p *Plan) error
	InitCount(p *Plan) error
	InitAggregate(p *Plan) error
	InitField(p *Plan) error
	InitGroup(p *Plan) error

	// DoExecute runs the plan in its committed mode.
	DoExecute(ctx context.Context, p *Plan) (*Result, error)
	// DoGet returns every projected row.
	DoGet(ctx context.Context, p *Plan) ([]ir.Row, error)
	// DoGetRow returns the first projected row, or nil.
	DoGetRow(ctx context.Context, p *Plan) (ir.Row, error)
	// DoGetOne returns the first column of the first row, or Null.
	DoGetOne(ctx context.Context, p *Plan) (ir.Value, error)
}

// Persistence creates engines bound to a model snapshot.
type Persistence interface {
	NewEngine(m *model.Model) (Engine, error)
}

// BaseEngine implements every Init hook as a no-op. Engines embed it and
// override the hooks they need.
type BaseEngine struct{}

func (BaseEngine) InitWhere(*Plan) error     { return nil }
func (BaseEngine) InitOrder(*Plan) error     { return nil }
func (BaseEngine) InitLimit(*Plan) error     { return nil }
func (BaseEngine) InitSelect(*Plan) error    { return nil }
func (BaseEngine) InitInsert(*Plan) error    { return nil }
func (BaseEngine) InitUpdate(*Plan) error    { return nil }
func (BaseEngine) InitDelete(*Plan) error    { return nil }
func (BaseEngine) InitExists(*Plan) error    { return nil }
func (BaseEngine) InitCount(*Plan) error     { return nil }
func (BaseEngine) InitAggregate(*Plan) error { return nil }
func (BaseEngine) InitField(*Plan) error     { return nil }
func (BaseEngine) InitGroup(*Plan) error     { return nil }

// FirstValue returns the first projected column of row, or Null.
// Engines use it to implement DoGetOne.
func FirstValue(p *Plan, row ir.Row) ir.Value {
	if row == nil {
		return ir.Null{}
	}
	cols := p.Columns()
	if len(cols) == 0 {
		return ir.Null{}
	}
	return row.Get(cols[0])
}
