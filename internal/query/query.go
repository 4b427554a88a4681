package query

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/scope"
)

// Hook events fired on the owning model.
const (
	HookInitSelect = "init_select"
	hookBefore     = "before_"
	hookAfter      = "after_"
)

// Query is a single-use query over one model snapshot.
//
// Builder calls may be repeated until a terminal call (Execute, Get,
// GetRow, GetOne, All, Find) consumes the query.
type Query struct {
	persistence Persistence
	engine      Engine
	plan        *Plan
	consumed    bool
}

// New snapshots m and creates an engine for it. The query's scope, order
// and limit start as copies of the model's; later builder calls never
// touch m.
func New(p Persistence, m *model.Model) (*Query, error) {
	snapshot := m.Clone()
	engine, err := p.NewEngine(snapshot)
	if err != nil {
		return nil, fmt.Errorf("create engine for %s: %w", m.Name, err)
	}
	return &Query{
		persistence: p,
		engine:      engine,
		plan: &Plan{
			Model: snapshot,
			Scope: snapshot.Scope(),
			Order: snapshot.Order(),
			Limit: snapshot.Limit(),
		},
	}, nil
}

// Model returns the query's model snapshot.
func (q *Query) Model() *model.Model {
	return q.plan.Model
}

// Plan returns a copy of the current plan.
func (q *Query) Plan() *Plan {
	return q.plan.Clone()
}

// Mode returns the committed mode.
func (q *Query) Mode() Mode {
	return q.plan.Mode
}

// Clone returns an independent query with a fresh engine. Consumption
// state is not copied.
func (q *Query) Clone() (*Query, error) {
	plan := q.plan.Clone()
	engine, err := q.persistence.NewEngine(plan.Model)
	if err != nil {
		return nil, fmt.Errorf("create engine for %s: %w", plan.Model.Name, err)
	}
	return &Query{persistence: q.persistence, engine: engine, plan: plan}, nil
}

// Select projects fields (all declared fields when none are given).
func (q *Query) Select(fields ...string) error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := q.plan.Model.Field(f); err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		q.plan.Fields = append([]string(nil), fields...)
	} else {
		q.plan.Fields = nil
	}
	q.plan.Projection = ProjectRows
	q.plan.Alias = ""
	return q.run(q.engine.InitWhere, q.engine.InitLimit, q.engine.InitOrder, q.engine.InitSelect, q.initSelect)
}

// Insert prepares a single-row insert of data.
func (q *Query) Insert(data ir.Row) error {
	if err := q.checkWrite(ModeInsert); err != nil {
		return err
	}
	if err := q.plan.Model.ValidateInsert(data); err != nil {
		return err
	}
	q.plan.Data = q.plan.Model.Normalize(data)
	if err := q.engine.InitInsert(q.plan); err != nil {
		return err
	}
	q.plan.Mode = ModeInsert
	return nil
}

// Update prepares a partial merge of data onto every row in scope.
func (q *Query) Update(data ir.Row) error {
	if err := q.checkWrite(ModeUpdate); err != nil {
		return err
	}
	m := q.plan.Model
	if m.HasIDField() && data.Has(m.IDField) {
		return &model.ValidationError{
			Code:   model.ErrCodeValidation,
			Model:  m.Name,
			Issues: []string{fmt.Sprintf("%s: identity cannot be updated", m.IDField)},
		}
	}
	if len(data) == 0 {
		return &model.ValidationError{
			Code:   model.ErrCodeValidation,
			Model:  m.Name,
			Issues: []string{"update data is empty"},
		}
	}
	if err := m.ValidateUpdate(data); err != nil {
		return err
	}
	q.plan.Data = m.Normalize(data)
	if err := q.run(q.engine.InitWhere, q.engine.InitUpdate); err != nil {
		return err
	}
	q.plan.Mode = ModeUpdate
	return nil
}

// Delete prepares removal of every row in scope.
func (q *Query) Delete() error {
	if err := q.checkWrite(ModeDelete); err != nil {
		return err
	}
	if err := q.run(q.engine.InitWhere, q.engine.InitDelete, q.initSelect); err != nil {
		return err
	}
	q.plan.Mode = ModeDelete
	return nil
}

// Exists projects 1 when any row is in scope and 0 otherwise. Order and
// limit are ignored.
func (q *Query) Exists() error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	q.plan.Projection = ProjectExists
	q.plan.Fields = nil
	q.plan.Alias = defaultAlias(q.plan)
	return q.run(q.engine.InitWhere, q.engine.InitExists, q.initSelect)
}

// Count projects the number of rows in scope. The limit is ignored.
func (q *Query) Count(alias string) error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	q.plan.Projection = ProjectCount
	q.plan.Fields = nil
	q.plan.Alias = alias
	if alias == "" {
		q.plan.Alias = defaultAlias(q.plan)
	}
	return q.run(q.engine.InitWhere, q.engine.InitCount, q.initSelect)
}

// Aggregate projects fn over field across the scoped set. Order and limit
// are ignored.
func (q *Query) Aggregate(fn, field, alias string, coalesce bool) error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	f, err := ParseAggregate(fn)
	if err != nil {
		return err
	}
	if _, err := q.plan.Model.Field(field); err != nil {
		return err
	}
	q.plan.Projection = ProjectAggregate
	q.plan.Fields = nil
	q.plan.Aggregate = Aggregate{Func: f, Field: field, Coalesce: coalesce}
	q.plan.Alias = alias
	if alias == "" {
		q.plan.Alias = defaultAlias(q.plan)
	}
	return q.run(q.engine.InitWhere, q.engine.InitAggregate, q.initSelect)
}

// Group projects one row per distinct combination of fields, followed by
// columns computed over the rows of each group. The scope applies before
// grouping. Order keys must be group fields; groups are ordered by
// Plan.GroupOrder and the limit applies to groups.
func (q *Query) Group(fields []string, columns ...GroupColumn) error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	m := q.plan.Model
	if len(fields) == 0 {
		return newInvalidGroupError(m.Name, "group requires at least one field")
	}
	seen := make(map[string]bool, len(fields)+len(columns))
	for _, f := range fields {
		if _, err := m.Field(f); err != nil {
			return err
		}
		if seen[f] {
			return newInvalidGroupError(m.Name, "column %q appears twice", f)
		}
		seen[f] = true
	}

	cols := make([]GroupColumn, len(columns))
	for i, gc := range columns {
		fn, err := parseGroupFunc(string(gc.Aggregate.Func))
		if err != nil {
			return err
		}
		gc.Aggregate.Func = fn
		if fn == CountRows {
			gc.Aggregate.Field = ""
		} else if _, err := m.Field(gc.Aggregate.Field); err != nil {
			return err
		}
		if gc.Alias == "" {
			gc.Alias = strings.ToLower(string(fn))
		}
		if seen[gc.Alias] {
			return newInvalidGroupError(m.Name, "column %q appears twice", gc.Alias)
		}
		seen[gc.Alias] = true
		cols[i] = gc
	}
	for _, key := range q.plan.Order {
		if !slices.Contains(fields, key.Field) {
			return newInvalidGroupError(m.Name, "cannot order groups by %q: not a group field", key.Field)
		}
	}

	q.plan.Projection = ProjectGroup
	q.plan.Fields = nil
	q.plan.Alias = ""
	q.plan.Group = slices.Clone(fields)
	q.plan.GroupColumns = cols
	return q.run(q.engine.InitWhere, q.engine.InitLimit, q.engine.InitOrder, q.engine.InitGroup, q.initSelect)
}

func parseGroupFunc(fn string) (AggregateFunc, error) {
	if AggregateFunc(strings.ToUpper(strings.TrimSpace(fn))) == CountRows {
		return CountRows, nil
	}
	return ParseAggregate(fn)
}

// Field projects a single field. When the model snapshot is bound to a
// loaded identity the query is narrowed to that record.
func (q *Query) Field(name, alias string) error {
	if err := q.checkProjection(); err != nil {
		return err
	}
	if _, err := q.plan.Model.Field(name); err != nil {
		return err
	}
	q.plan.Projection = ProjectField
	q.plan.Fields = []string{name}
	q.plan.Alias = alias
	if alias == "" {
		q.plan.Alias = defaultAlias(q.plan)
	}
	if err := q.run(q.engine.InitWhere, q.engine.InitLimit, q.engine.InitOrder, q.engine.InitField); err != nil {
		return err
	}
	if q.plan.Model.Loaded() {
		if err := q.WhereID(q.plan.Model.ID()); err != nil {
			return err
		}
	}
	return q.initSelect(q.plan)
}

// Where narrows the query's own scope by a condition. The field is
// resolved immediately.
func (q *Query) Where(operand string, args ...any) error {
	c, err := scope.NewCondition(operand, args...)
	if err != nil {
		return err
	}
	return q.WhereNode(c)
}

// WhereNode narrows the query's own scope by n.
func (q *Query) WhereNode(n scope.Node) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	bound, err := scope.Bind(n, q.plan.Model)
	if err != nil {
		return err
	}
	q.plan.Scope.And(bound)
	return nil
}

// WhereID narrows the query to one identity.
func (q *Query) WhereID(id any) error {
	m := q.plan.Model
	if !m.HasIDField() {
		return NewIdentityRequiredError(m.Name, "where id")
	}
	return q.Where(m.IDField, id)
}

// Order appends an ordering key. Later keys break ties of earlier ones.
func (q *Query) Order(field string, desc bool) error {
	dir := model.Asc
	if desc {
		dir = model.Desc
	}
	return q.OrderBy(field, dir)
}

// OrderBy appends an ordering key with an explicit direction; anything
// other than "desc" (any case) sorts ascending.
func (q *Query) OrderBy(field, direction string) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	if _, err := q.plan.Model.Field(field); err != nil {
		return err
	}
	if q.plan.Projection == ProjectGroup && !slices.Contains(q.plan.Group, field) {
		return newInvalidGroupError(q.plan.Model.Name, "cannot order groups by %q: not a group field", field)
	}
	q.plan.Order = append(q.plan.Order, model.OrderKey{Field: field, Direction: direction})
	return q.engine.InitOrder(q.plan)
}

// Limit replaces the limit. Use model.Unlimited for "skip offset, no cap".
func (q *Query) Limit(count, offset int) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	l, err := model.NewLimit(count, offset)
	if err != nil {
		return err
	}
	q.plan.Limit = l
	return q.engine.InitLimit(q.plan)
}

// Execute commits the mode (SELECT when unset) and runs the plan,
// firing before_<mode> and after_<mode> on the model.
func (q *Query) Execute(ctx context.Context) (*Result, error) {
	var res *Result
	err := q.terminal(func() error {
		mode := q.plan.Mode
		hooks := q.plan.Model.Hooks()
		hooks.Notify(hookBefore+string(mode), q)
		r, err := q.engine.DoExecute(ctx, q.plan)
		if err != nil {
			return err
		}
		hooks.Notify(hookAfter+string(mode), q, r)
		res = r
		return nil
	})
	return res, err
}

// Get returns every projected row.
func (q *Query) Get(ctx context.Context) ([]ir.Row, error) {
	var rows []ir.Row
	err := q.terminal(func() error {
		if err := q.requireSelect(); err != nil {
			return err
		}
		r, err := q.engine.DoGet(ctx, q.plan)
		rows = r
		return err
	})
	return rows, err
}

// GetRow returns the first projected row, or nil when none match. The
// limit is forced to one row.
func (q *Query) GetRow(ctx context.Context) (ir.Row, error) {
	var row ir.Row
	err := q.terminal(func() error {
		if err := q.requireSelect(); err != nil {
			return err
		}
		q.plan.Limit = model.Limit{Count: 1}
		if err := q.engine.InitLimit(q.plan); err != nil {
			return err
		}
		r, err := q.engine.DoGetRow(ctx, q.plan)
		row = r
		return err
	})
	return row, err
}

// GetOne returns the first column of the first row, or Null.
func (q *Query) GetOne(ctx context.Context) (ir.Value, error) {
	var v ir.Value = ir.Null{}
	err := q.terminal(func() error {
		if err := q.requireSelect(); err != nil {
			return err
		}
		r, err := q.engine.DoGetOne(ctx, q.plan)
		if err != nil {
			return err
		}
		if r != nil {
			v = r
		}
		return nil
	})
	return v, err
}

// All iterates the projected rows. A failure is yielded once as the final
// element.
func (q *Query) All(ctx context.Context) iter.Seq2[ir.Row, error] {
	return func(yield func(ir.Row, error) bool) {
		rows, err := q.Get(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Find returns the record with identity id, or nil.
func (q *Query) Find(ctx context.Context, id any) (ir.Row, error) {
	if err := q.WhereID(id); err != nil {
		return nil, err
	}
	return q.GetRow(ctx)
}

// Debug returns a diagnostic snapshot of the query.
func (q *Query) Debug() *Debug {
	order := make([]string, len(q.plan.Order))
	for i, k := range q.plan.Order {
		order[i] = k.String()
	}
	return &Debug{
		Mode:  q.plan.Mode.String(),
		Model: q.plan.Model.Name,
		Scope: q.plan.Scope.ToWords(),
		Order: order,
		Limit: q.plan.Limit.String(),
	}
}

// terminal consumes the query, commits the mode and wraps any failure
// with a debug snapshot.
func (q *Query) terminal(fn func() error) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	if q.plan.Mode == ModeUnset {
		if err := q.Select(); err != nil {
			q.consumed = true
			return q.executionFailed(err)
		}
	}
	q.consumed = true

	slog.Debug("executing query",
		"model", q.plan.Model.Name,
		"mode", q.plan.Mode.String(),
		"projection", string(q.plan.Projection),
		"scope", q.plan.Scope.ToWords(),
	)
	if err := fn(); err != nil {
		return q.executionFailed(err)
	}
	return nil
}

func (q *Query) executionFailed(err error) error {
	debug := q.Debug()
	slog.Debug("query failed", "model", debug.Model, "mode", debug.Mode, "error", err)
	return &Error{
		Code:    ErrCodeExecutionFailed,
		Message: "execution of query failed",
		Model:   debug.Model,
		Debug:   debug,
		Err:     err,
	}
}

// initSelect fires the init-select hook once and commits SELECT.
func (q *Query) initSelect(p *Plan) error {
	if p.Mode != ModeSelect {
		p.Model.Hooks().Notify(HookInitSelect, q)
		p.Mode = ModeSelect
	}
	return nil
}

func (q *Query) run(steps ...func(*Plan) error) error {
	for _, step := range steps {
		if err := step(q.plan); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) checkOpen() error {
	if q.consumed {
		return &Error{
			Code:    ErrCodeConsumed,
			Message: "query was already executed",
			Model:   q.plan.Model.Name,
		}
	}
	return nil
}

// checkProjection allows select-family calls on an unset or SELECT query.
func (q *Query) checkProjection() error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	if q.plan.Mode != ModeUnset && q.plan.Mode != ModeSelect {
		return newModeConflictError(q.plan.Model.Name, q.plan.Mode, ModeSelect)
	}
	return nil
}

// checkWrite allows a write mode to be committed only from unset.
func (q *Query) checkWrite(want Mode) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	m := q.plan.Model
	if m.ReadOnly {
		return &Error{
			Code:    ErrCodeReadOnly,
			Message: fmt.Sprintf("model is read-only, %s is not allowed", want),
			Model:   m.Name,
		}
	}
	if q.plan.Mode != ModeUnset {
		return newModeConflictError(m.Name, q.plan.Mode, want)
	}
	return nil
}

func (q *Query) requireSelect() error {
	if q.plan.Mode != ModeSelect {
		return newModeConflictError(q.plan.Model.Name, q.plan.Mode, ModeSelect)
	}
	return nil
}
