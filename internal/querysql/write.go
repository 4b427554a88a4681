package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/scopeq/internal/query"
)

// compileInsert lists the provided fields in declaration order. Postgres
// returns the identity with RETURNING; SQLite reports it through
// LastInsertId.
func (c *Compiler) compileInsert(p *query.Plan) (Statement, error) {
	m := p.Model
	table := QuoteIdent(m.Table)

	var (
		cols   []string
		marks  []string
		params []any
	)
	for _, f := range m.Fields() {
		v, ok := p.Data[f.Name]
		if !ok {
			continue
		}
		param, err := Param(v)
		if err != nil {
			return Statement{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		cols = append(cols, QuoteIdent(f.Name))
		marks = append(marks, "?")
		params = append(params, param)
	}

	var sql string
	if len(cols) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table)
	} else {
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	}

	st := Statement{SQL: sql, Params: params}
	if c.Dialect == Postgres && m.HasIDField() {
		st.SQL += " RETURNING " + QuoteIdent(m.IDField)
		st.Returning = true
	}
	return st, nil
}

func (c *Compiler) compileUpdate(p *query.Plan) (Statement, error) {
	m := p.Model
	var (
		sets   []string
		params []any
	)
	for _, f := range m.Fields() {
		v, ok := p.Data[f.Name]
		if !ok {
			continue
		}
		param, err := Param(v)
		if err != nil {
			return Statement{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		sets = append(sets, QuoteIdent(f.Name)+" = ?")
		params = append(params, param)
	}
	if len(sets) == 0 {
		return Statement{}, fmt.Errorf("update of %s sets no fields", m.Table)
	}

	where, whereParams, err := c.whereClause(p)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s%s", QuoteIdent(m.Table), strings.Join(sets, ", "), where)
	return Statement{SQL: sql, Params: append(params, whereParams...)}, nil
}

func (c *Compiler) compileDelete(p *query.Plan) (Statement, error) {
	where, params, err := c.whereClause(p)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("DELETE FROM %s%s", QuoteIdent(p.Model.Table), where)
	return Statement{SQL: sql, Params: params}, nil
}
