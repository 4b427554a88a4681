package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/scope"
)

// Null handling follows the in-memory total order, where null is the
// lowest value and equal to itself:
//
//	f = null    f IS NULL
//	f != v      null-safe inequality, null rows included
//	f > null    f IS NOT NULL
//	f >= null   every row
//	f < null    no row
//	f <= null   f IS NULL
//	f < v       null rows included
//
// LIKE and REGEXP match the text form of the value the way the row
// matcher renders it: null and false read as the empty string, true as
// "1", integers in decimal. Float fields take no pattern operators.
// Ordered comparisons on string fields compare bytes.

const (
	sqlTrue  = "1 = 1"
	sqlFalse = "1 = 0"
)

// Where compiles a scope tree into a WHERE clause body without field
// kinds: pattern operators cast every column to text and comparisons use
// the column's own collation. An empty tree compiles to the empty string.
func (c *Compiler) Where(n scope.Node) (string, []any, error) {
	return c.WhereFor(nil, n)
}

// WhereFor compiles n with field kinds resolved through fields,
// normally the model the scope was bound to.
func (c *Compiler) WhereFor(fields scope.Resolver, n scope.Node) (string, []any, error) {
	if n == nil || n.IsEmpty() {
		return "", nil, nil
	}
	sql, _, params, err := c.node(fields, n)
	return sql, params, err
}

// node returns the fragment and the number of joined terms it holds.
func (c *Compiler) node(fields scope.Resolver, n scope.Node) (string, int, []any, error) {
	switch v := n.(type) {
	case *scope.Condition:
		sql, params, err := c.condition(fields, v)
		return sql, 1, params, err
	case *scope.Scope:
		return c.scope(fields, v)
	default:
		return "", 0, nil, fmt.Errorf("unsupported node %T", n)
	}
}

func (c *Compiler) scope(fields scope.Resolver, s *scope.Scope) (string, int, []any, error) {
	var (
		parts  []string
		params []any
	)
	for _, child := range s.ActiveComponents() {
		sql, terms, ps, err := c.node(fields, child)
		if err != nil {
			return "", 0, nil, err
		}
		if sql == "" {
			continue
		}
		if terms > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " "+string(s.Junction())+" "), len(parts), params, nil
}

func (c *Compiler) condition(fields scope.Resolver, cond *scope.Condition) (string, []any, error) {
	if cond.IsExpression() {
		v, ok := cond.Constant()
		if !ok {
			return "", nil, scope.NewUnsupportedExpressionError(cond.Operand())
		}
		if v {
			return sqlTrue, nil, nil
		}
		return sqlFalse, nil, nil
	}

	op := cond.Operator()
	if !scope.IsSupportedOperator(op) || cond.IsNegated() {
		return "", nil, scope.NewUnsupportedOperatorError(cond.Operand(), op)
	}
	kind := ir.KindNull
	if fields != nil {
		k, err := fields.ResolveField(cond.Operand())
		if err != nil {
			return "", nil, err
		}
		kind = k
	}
	col := QuoteIdent(cond.Operand())
	value := cond.Value()

	switch op {
	case scope.OpEq:
		if seq, ok := value.(ir.Seq); ok {
			return c.in(col, seq)
		}
		return c.equal(col, value)
	case scope.OpNe, scope.OpNeAlt:
		if seq, ok := value.(ir.Seq); ok {
			return c.notIn(col, seq)
		}
		return c.notEqual(col, value)
	case scope.OpIn, scope.OpNotIn:
		seq, ok := value.(ir.Seq)
		if !ok {
			seq = ir.Seq{value}
		}
		if op == scope.OpIn {
			return c.in(col, seq)
		}
		return c.notIn(col, seq)
	case scope.OpGt, scope.OpGe, scope.OpLt, scope.OpLe:
		return c.ordered(col, op, value, kind)
	case scope.OpLike, scope.OpNotLike:
		text, err := c.text(cond, col, kind)
		if err != nil {
			return "", nil, err
		}
		sql := text + " " + op + ` ? ESCAPE '\'`
		return sql, []any{EscapeLike(value.String())}, nil
	case scope.OpRegexp, scope.OpNotRegexp:
		text, err := c.text(cond, col, kind)
		if err != nil {
			return "", nil, err
		}
		sql := text + " " + c.Dialect.regexpOperator() + " ?"
		if op == scope.OpNotRegexp {
			sql = "NOT (" + sql + ")"
		}
		return sql, []any{value.String()}, nil
	default:
		return "", nil, scope.NewUnsupportedOperatorError(cond.Operand(), op)
	}
}

func (c *Compiler) equal(col string, v ir.Value) (string, []any, error) {
	if ir.IsNull(v) {
		return col + " IS NULL", nil, nil
	}
	p, err := Param(v)
	if err != nil {
		return "", nil, err
	}
	return col + " = ?", []any{p}, nil
}

func (c *Compiler) notEqual(col string, v ir.Value) (string, []any, error) {
	if ir.IsNull(v) {
		return col + " IS NOT NULL", nil, nil
	}
	p, err := Param(v)
	if err != nil {
		return "", nil, err
	}
	if c.Dialect == Postgres {
		return col + " IS DISTINCT FROM ?", []any{p}, nil
	}
	return col + " IS NOT ?", []any{p}, nil
}

// in matches any candidate. A null candidate matches null rows.
func (c *Compiler) in(col string, seq ir.Seq) (string, []any, error) {
	list, params, hasNull, err := candidates(seq)
	if err != nil {
		return "", nil, err
	}
	switch {
	case list == "" && !hasNull:
		return sqlFalse, nil, nil
	case list == "":
		return col + " IS NULL", nil, nil
	case hasNull:
		return "(" + col + " IN (" + list + ") OR " + col + " IS NULL)", params, nil
	default:
		return col + " IN (" + list + ")", params, nil
	}
}

func (c *Compiler) notIn(col string, seq ir.Seq) (string, []any, error) {
	list, params, hasNull, err := candidates(seq)
	if err != nil {
		return "", nil, err
	}
	switch {
	case list == "" && !hasNull:
		return sqlTrue, nil, nil
	case list == "":
		return col + " IS NOT NULL", nil, nil
	case hasNull:
		return "(" + col + " NOT IN (" + list + ") AND " + col + " IS NOT NULL)", params, nil
	default:
		return "(" + col + " NOT IN (" + list + ") OR " + col + " IS NULL)", params, nil
	}
}

func candidates(seq ir.Seq) (list string, params []any, hasNull bool, err error) {
	marks := make([]string, 0, len(seq))
	for _, v := range seq {
		if ir.IsNull(v) {
			hasNull = true
			continue
		}
		p, err := Param(v)
		if err != nil {
			return "", nil, false, err
		}
		marks = append(marks, "?")
		params = append(params, p)
	}
	return strings.Join(marks, ", "), params, hasNull, nil
}

func (c *Compiler) ordered(col, op string, v ir.Value, kind ir.Kind) (string, []any, error) {
	if ir.IsNull(v) {
		switch op {
		case scope.OpGt:
			return col + " IS NOT NULL", nil, nil
		case scope.OpGe:
			return sqlTrue, nil, nil
		case scope.OpLt:
			return sqlFalse, nil, nil
		default:
			return col + " IS NULL", nil, nil
		}
	}
	if _, ok := v.(ir.Seq); ok {
		return "", nil, fmt.Errorf("operator %s cannot compare %s against a list", op, col)
	}
	p, err := Param(v)
	if err != nil {
		return "", nil, err
	}
	cmp := col
	if kind == ir.KindText {
		cmp += c.Dialect.textCollation()
	}
	if op == scope.OpLt || op == scope.OpLe {
		return "(" + cmp + " " + op + " ? OR " + col + " IS NULL)", []any{p}, nil
	}
	return cmp + " " + op + " ?", []any{p}, nil
}

// text renders col the way ir.Value.String renders the field's values.
func (c *Compiler) text(cond *scope.Condition, col string, kind ir.Kind) (string, error) {
	switch kind {
	case ir.KindBool:
		return "CASE WHEN " + col + " THEN '1' ELSE '' END", nil
	case ir.KindInt:
		return "COALESCE(CAST(" + col + " AS TEXT), '')", nil
	case ir.KindFloat:
		return "", scope.NewTypeMismatchError(cond.Operand(), cond.Operator(), "pattern operators do not apply to float fields")
	default:
		return "COALESCE(CAST(" + col + " AS TEXT), '')", nil
	}
}

// EscapeLike escapes the characters that are wildcards in SQL LIKE but
// literal under the row matcher. Only % stays a wildcard.
func EscapeLike(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `_`, `\_`)
	return r.Replace(pattern)
}

// Param converts a scalar value into a driver parameter.
func Param(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.Bool:
		return bool(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Text:
		return string(val), nil
	default:
		return nil, fmt.Errorf("%s value cannot be used as SQL parameter", v.Kind())
	}
}
