package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/query"
)

// Compiler compiles query plans into parameterized SQL.
//
// Every SELECT that returns rows carries an ORDER BY ending with the
// identity field, so ties resolve in insertion order like the in-memory
// backend. Values are always bound as parameters, never interpolated.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Statement is a compiled plan.
type Statement struct {
	SQL    string
	Params []any
	// Returning is set when the statement yields the inserted identity as
	// a result row.
	Returning bool
}

// Compile converts a plan into a statement in the compiler's dialect.
func (c *Compiler) Compile(p *query.Plan) (Statement, error) {
	if p == nil || p.Model == nil {
		return Statement{}, fmt.Errorf("cannot compile nil plan")
	}

	var (
		st  Statement
		err error
	)
	switch p.Mode {
	case query.ModeUnset, query.ModeSelect:
		st, err = c.compileSelect(p)
	case query.ModeInsert:
		st, err = c.compileInsert(p)
	case query.ModeUpdate:
		st, err = c.compileUpdate(p)
	case query.ModeDelete:
		st, err = c.compileDelete(p)
	default:
		return Statement{}, fmt.Errorf("unsupported mode %q", p.Mode)
	}
	if err != nil {
		return Statement{}, err
	}
	st.SQL = c.Dialect.Rebind(st.SQL)
	return st, nil
}

func (c *Compiler) compileSelect(p *query.Plan) (Statement, error) {
	table := QuoteIdent(p.Model.Table)
	where, params, err := c.whereClause(p)
	if err != nil {
		return Statement{}, err
	}

	switch p.Projection {
	case query.ProjectCount:
		sql := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s%s", QuoteIdent(p.Alias), table, where)
		return Statement{SQL: sql, Params: params}, nil
	case query.ProjectExists:
		sql := fmt.Sprintf("SELECT CASE WHEN EXISTS (SELECT 1 FROM %s%s) THEN 1 ELSE 0 END AS %s",
			table, where, QuoteIdent(p.Alias))
		return Statement{SQL: sql, Params: params}, nil
	case query.ProjectAggregate:
		expr, err := c.aggregate(p.Model, p.Aggregate)
		if err != nil {
			return Statement{}, err
		}
		sql := fmt.Sprintf("SELECT %s AS %s FROM %s%s", expr, QuoteIdent(p.Alias), table, where)
		return Statement{SQL: sql, Params: params}, nil
	case query.ProjectGroup:
		return c.compileGroup(p, table, where, params)
	}

	var cols string
	if p.Projection == query.ProjectField {
		cols = QuoteIdent(p.SourceField())
		if p.Alias != p.SourceField() {
			cols += " AS " + QuoteIdent(p.Alias)
		}
	} else {
		quoted := make([]string, 0, len(p.Columns()))
		for _, col := range p.Columns() {
			quoted = append(quoted, QuoteIdent(col))
		}
		cols = strings.Join(quoted, ", ")
	}

	order, err := c.orderBy(p)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s%s%s%s", cols, table, where, order, c.limit(p.Limit))
	return Statement{SQL: sql, Params: params}, nil
}

// compileGroup renders a GROUP BY select. Groups are ordered by every
// group field after the explicit keys, so no identity tiebreaker is needed.
func (c *Compiler) compileGroup(p *query.Plan, table, where string, params []any) (Statement, error) {
	if len(p.Group) == 0 {
		return Statement{}, fmt.Errorf("group projection without group fields")
	}
	group := make([]string, 0, len(p.Group))
	for _, f := range p.Group {
		if _, err := p.Model.Field(f); err != nil {
			return Statement{}, err
		}
		group = append(group, QuoteIdent(f))
	}
	cols := slices.Clone(group)
	for _, gc := range p.GroupColumns {
		expr := "COUNT(*)"
		if gc.Aggregate.Func != query.CountRows {
			var err error
			if expr, err = c.aggregate(p.Model, gc.Aggregate); err != nil {
				return Statement{}, err
			}
		}
		cols = append(cols, expr+" AS "+QuoteIdent(gc.Alias))
	}

	terms := make([]string, 0, len(p.Group))
	for _, key := range p.GroupOrder() {
		f, err := p.Model.Field(key.Field)
		if err != nil {
			return Statement{}, err
		}
		terms = append(terms, c.orderTerm(f, key.IsDesc()))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s GROUP BY %s ORDER BY %s%s",
		strings.Join(cols, ", "), table, where, strings.Join(group, ", "),
		strings.Join(terms, ", "), c.limit(p.Limit))
	return Statement{SQL: sql, Params: params}, nil
}

func (c *Compiler) whereClause(p *query.Plan) (string, []any, error) {
	sql, params, err := c.WhereFor(p.Model, p.Scope)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	if sql == "" {
		return "", nil, nil
	}
	return " WHERE " + sql, params, nil
}

// orderBy renders the explicit keys followed by the identity tiebreaker.
// Without an identity field SQLite falls back to rowid.
func (c *Compiler) orderBy(p *query.Plan) (string, error) {
	terms := make([]string, 0, len(p.Order)+1)
	for _, key := range p.Order {
		f, err := p.Model.Field(key.Field)
		if err != nil {
			return "", err
		}
		terms = append(terms, c.orderTerm(f, key.IsDesc()))
	}
	switch {
	case p.Model.HasIDField():
		f, err := p.Model.Field(p.Model.IDField)
		if err != nil {
			return "", err
		}
		terms = append(terms, c.orderTerm(f, false))
	case c.Dialect == SQLite:
		terms = append(terms, "rowid ASC")
	}
	if len(terms) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

// orderTerm sorts nulls lowest: first ascending, last descending.
func (c *Compiler) orderTerm(f model.Field, desc bool) string {
	term := QuoteIdent(f.Name)
	if f.Type == model.TypeString {
		term += c.Dialect.textCollation()
	}
	if desc {
		term += " DESC"
	} else {
		term += " ASC"
	}
	if c.Dialect == Postgres {
		if desc {
			term += " NULLS LAST"
		} else {
			term += " NULLS FIRST"
		}
	}
	return term
}

func (c *Compiler) limit(l model.Limit) string {
	count, offset, restricted, capped := l.Args()
	switch {
	case !restricted:
		return ""
	case !capped && c.Dialect == Postgres:
		return fmt.Sprintf(" OFFSET %d", offset)
	case !capped:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	case offset == 0:
		return fmt.Sprintf(" LIMIT %d", count)
	default:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", count, offset)
	}
}

// aggregate renders the aggregate expression. Booleans aggregate as 0/1.
// A coalescing AVG counts nulls as zero; every coalescing aggregate
// yields 0 instead of null.
func (c *Compiler) aggregate(m *model.Model, agg query.Aggregate) (string, error) {
	f, err := m.Field(agg.Field)
	if err != nil {
		return "", err
	}
	col := QuoteIdent(f.Name)
	if f.Type == model.TypeBoolean {
		col = "CAST(" + col + " AS INTEGER)"
	}

	var expr string
	switch agg.Func {
	case query.Avg:
		if agg.Coalesce {
			col = "COALESCE(" + col + ", 0)"
		}
		expr = "AVG(" + col + ")"
		if c.Dialect == Postgres {
			expr = "CAST(" + expr + " AS DOUBLE PRECISION)"
		}
	case query.Sum:
		expr = "SUM(" + col + ")"
		if c.Dialect == Postgres && (f.Type == model.TypeInteger || f.Type == model.TypeBoolean) {
			expr = "CAST(" + expr + " AS BIGINT)"
		}
	case query.Min, query.Max:
		expr = string(agg.Func) + "(" + col + ")"
	default:
		return "", query.NewUnsupportedAggregateError(string(agg.Func))
	}
	if agg.Coalesce {
		expr = "COALESCE(" + expr + ", 0)"
	}
	return expr, nil
}
