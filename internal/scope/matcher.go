package scope

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/scopeq/internal/ir"
)

// ExpressionEvaluator evaluates pure expression conditions against a row.
type ExpressionEvaluator interface {
	EvaluateExpression(expr string, row ir.Row) (bool, error)
}

// ExpressionChecker is implemented by evaluators that can validate an
// expression without a row. Check uses it when available.
type ExpressionChecker interface {
	CheckExpression(expr string) error
}

// Matcher evaluates Scope trees against in-memory rows.
//
// AND short-circuits on the first false child, OR on the first true child.
// Disabled conditions and empty sub-scopes are ignored; an empty scope
// matches every row. Fields absent from the row read as null.
type Matcher struct {
	// Expressions evaluates pure expression conditions. The constants
	// "true" and "false" never reach it. Nil means expressions other than
	// the constants fail with UNSUPPORTED_EXPRESSION.
	Expressions ExpressionEvaluator
}

// Match reports whether row satisfies n.
func (m Matcher) Match(n Node, row ir.Row) (bool, error) {
	switch v := n.(type) {
	case *Scope:
		return m.matchScope(v, row)
	case *Condition:
		return m.matchCondition(v, row)
	default:
		return false, fmt.Errorf("unsupported node %T", n)
	}
}

func (m Matcher) matchScope(s *Scope, row ir.Row) (bool, error) {
	for _, c := range s.components {
		if c.IsEmpty() {
			continue
		}
		ok, err := m.Match(c, row)
		if err != nil {
			return false, err
		}
		if s.junction == Or && ok {
			return true, nil
		}
		if s.junction == And && !ok {
			return false, nil
		}
	}
	// No child decided: every AND child matched, or no OR child did.
	// An OR with no active children is empty and matches.
	return s.junction == And || s.IsEmpty(), nil
}

func (m Matcher) matchCondition(c *Condition, row ir.Row) (bool, error) {
	if c.disabled {
		return true, nil
	}
	if c.expression {
		ok, err := m.matchExpression(c, row)
		if err != nil {
			return false, err
		}
		return ok != c.negated, nil
	}
	if !IsSupportedOperator(c.operator) {
		return false, NewUnsupportedOperatorError(c.operand, c.operator)
	}
	ok, err := EvaluateOperator(c.operator, row.Get(c.operand), c.value)
	if err != nil {
		if se, isScopeErr := err.(*Error); isScopeErr && se.Operand == "" {
			se.Operand = c.operand
		}
		return false, err
	}
	return ok != c.negated, nil
}

func (m Matcher) matchExpression(c *Condition, row ir.Row) (bool, error) {
	switch strings.ToLower(c.operand) {
	case ExprTrue:
		return true, nil
	case ExprFalse:
		return false, nil
	}
	if m.Expressions == nil {
		return false, NewUnsupportedExpressionError(c.operand)
	}
	return m.Expressions.EvaluateExpression(c.operand, row)
}

// Check validates operators and patterns in n without evaluating it.
func (m Matcher) Check(n Node) error {
	switch v := n.(type) {
	case *Scope:
		for _, c := range v.components {
			if err := m.Check(c); err != nil {
				return err
			}
		}
		return nil
	case *Condition:
		if v.disabled {
			return nil
		}
		if v.expression {
			if _, ok := v.Constant(); ok {
				return nil
			}
			if m.Expressions == nil {
				return NewUnsupportedExpressionError(v.operand)
			}
			if ec, ok := m.Expressions.(ExpressionChecker); ok {
				return ec.CheckExpression(v.operand)
			}
			return nil
		}
		if !IsSupportedOperator(v.operator) {
			return NewUnsupportedOperatorError(v.operand, v.operator)
		}
		if v.operator == OpRegexp || v.operator == OpNotRegexp {
			if _, err := compilePattern(v.value.String()); err != nil {
				return &Error{Code: ErrCodeInvalidPattern, Message: err.Error(), Operand: v.operand, Operator: v.operator}
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported node %T", n)
	}
}

// EvaluateOperator applies op to a row value (left) and a condition value
// (right).
func EvaluateOperator(op string, left, right ir.Value) (bool, error) {
	switch op {
	case OpEq:
		if _, ok := right.(ir.Seq); ok {
			return in(left, right), nil
		}
		return ir.Equal(left, right), nil
	case OpNe, OpNeAlt:
		ok, err := EvaluateOperator(OpEq, left, right)
		return !ok, err
	case OpGt:
		return ir.Compare(left, right) > 0, nil
	case OpGe:
		return ir.Compare(left, right) >= 0, nil
	case OpLt:
		return ir.Compare(left, right) < 0, nil
	case OpLe:
		return ir.Compare(left, right) <= 0, nil
	case OpLike:
		return like(left, right)
	case OpNotLike:
		ok, err := like(left, right)
		return !ok, err
	case OpIn:
		return in(left, right), nil
	case OpNotIn:
		return !in(left, right), nil
	case OpRegexp:
		return matchRegexp(left, right)
	case OpNotRegexp:
		ok, err := matchRegexp(left, right)
		return !ok, err
	default:
		return false, NewUnsupportedOperatorError("", op)
	}
}

// in tests membership with strict equality. A scalar right side degrades
// to equality.
func in(left, right ir.Value) bool {
	seq, ok := right.(ir.Seq)
	if !ok {
		return ir.Equal(left, right)
	}
	for _, candidate := range seq {
		if ir.Equal(left, candidate) {
			return true
		}
	}
	return false
}

var patternCache sync.Map // string -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// LikePattern translates a LIKE pattern into an anchored regular
// expression. Only % is a wildcard; every other character is literal and
// matching is case-sensitive.
func LikePattern(pattern string) string {
	parts := strings.Split(pattern, "%")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return `(?s)^` + strings.Join(parts, `.*`) + `$`
}

func like(left, right ir.Value) (bool, error) {
	re, err := compilePattern(LikePattern(right.String()))
	if err != nil {
		return false, err
	}
	return re.MatchString(left.String()), nil
}

func matchRegexp(left, right ir.Value) (bool, error) {
	re, err := compilePattern(right.String())
	if err != nil {
		return false, &Error{Code: ErrCodeInvalidPattern, Message: err.Error(), Operator: OpRegexp}
	}
	return re.MatchString(left.String()), nil
}

// MatchRegexp reports whether text matches pattern under REGEXP
// semantics. SQL backends register it as their REGEXP function.
func MatchRegexp(pattern, text string) (bool, error) {
	return matchRegexp(ir.Text(text), ir.Text(pattern))
}
