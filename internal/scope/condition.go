package scope

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/scopeq/internal/ir"
)

// Supported condition operators.
const (
	OpEq        = "="
	OpNe        = "!="
	OpNeAlt     = "<>"
	OpGt        = ">"
	OpGe        = ">="
	OpLt        = "<"
	OpLe        = "<="
	OpLike      = "LIKE"
	OpNotLike   = "NOT LIKE"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpRegexp    = "REGEXP"
	OpNotRegexp = "NOT REGEXP"
)

// inverse maps every supported operator to its logical negation.
var inverse = map[string]string{
	OpEq:        OpNe,
	OpNe:        OpEq,
	OpNeAlt:     OpEq,
	OpGt:        OpLe,
	OpLe:        OpGt,
	OpLt:        OpGe,
	OpGe:        OpLt,
	OpLike:      OpNotLike,
	OpNotLike:   OpLike,
	OpIn:        OpNotIn,
	OpNotIn:     OpIn,
	OpRegexp:    OpNotRegexp,
	OpNotRegexp: OpRegexp,
}

// IsSupportedOperator reports whether op is one of the supported operators.
func IsSupportedOperator(op string) bool {
	_, ok := inverse[op]
	return ok
}

// Constant expressions understood by every backend.
const (
	ExprTrue  = "true"
	ExprFalse = "false"
)

// Node is a Scope tree element: a *Condition or a *Scope.
type Node interface {
	// IsEmpty reports whether the node has no active content.
	IsEmpty() bool
	// IsCompound reports whether the node joins more than one active child.
	IsCompound() bool
	// Negate applies De Morgan negation in place.
	Negate()
	// CloneNode returns an independent deep copy.
	CloneNode() Node
	// ToWords renders a human-readable boolean expression.
	ToWords() string
	// Find returns descendants equal to key (a Node) or restricting the field
	// named by key (a string). Returns nil when absent.
	Find(key any) []Node
	// Peel unwraps single-child scopes down to the innermost node.
	Peel() Node

	node() // Sealed - only Condition and Scope implement it
}

// Condition is a single predicate leaf: an operand (field name or raw
// expression), an operator, and a value.
//
// A Condition with an operand and no operator is a pure expression. Once
// constructed, a Condition only changes through Negate, Disable and Bind.
type Condition struct {
	operand    string
	operator   string
	value      ir.Value
	expression bool
	negated    bool
	disabled   bool
}

func (*Condition) node() {}

// NewCondition builds a condition from shorthand arguments:
//
//	NewCondition("age > 18")            // pure expression
//	NewCondition("status", "active")    // status = active
//	NewCondition("age", ">", 18)        // explicit operator
//
// Operators are normalized to upper case. Unknown operators are accepted
// here and rejected when the condition is evaluated or compiled.
func NewCondition(operand string, args ...any) (*Condition, error) {
	operand = strings.TrimSpace(operand)
	if operand == "" {
		return nil, newInvalidConditionError("", "condition operand must not be empty")
	}

	switch len(args) {
	case 0:
		return &Condition{operand: operand, expression: true, value: ir.Null{}}, nil
	case 1:
		v, err := ir.FromGo(args[0])
		if err != nil {
			return nil, newInvalidConditionError(operand, "value: %v", err)
		}
		return &Condition{operand: operand, operator: OpEq, value: v}, nil
	case 2:
		op, ok := args[0].(string)
		if !ok {
			return nil, newInvalidConditionError(operand, "operator must be a string, got %T", args[0])
		}
		op = normalizeOperator(op)
		if op == "" {
			return nil, newInvalidConditionError(operand, "operator must not be empty")
		}
		v, err := ir.FromGo(args[1])
		if err != nil {
			return nil, newInvalidConditionError(operand, "value: %v", err)
		}
		return &Condition{operand: operand, operator: op, value: v}, nil
	default:
		return nil, newInvalidConditionError(operand, "expected at most 2 arguments after operand, got %d", len(args))
	}
}

// MustCondition is NewCondition for literals. Panics on malformed arguments.
func MustCondition(operand string, args ...any) *Condition {
	c, err := NewCondition(operand, args...)
	if err != nil {
		panic(err)
	}
	return c
}

// normalizeOperator upper-cases op and collapses internal whitespace so that
// "not  like" and "NOT LIKE" are the same operator.
func normalizeOperator(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}

// True returns the constant expression condition that matches every row.
func True() *Condition {
	return &Condition{operand: ExprTrue, expression: true, value: ir.Null{}}
}

// False returns the deny-all condition.
func False() *Condition {
	return &Condition{operand: ExprFalse, expression: true, value: ir.Null{}}
}

// Operand returns the field name or expression text.
func (c *Condition) Operand() string { return c.operand }

// Operator returns the normalized operator, empty for expressions.
func (c *Condition) Operator() string { return c.operator }

// Value returns the comparison value.
func (c *Condition) Value() ir.Value { return c.value }

// IsExpression reports whether c is a pure expression condition.
func (c *Condition) IsExpression() bool { return c.expression }

// IsNegated reports whether an expression (or unknown operator) has been
// negated. Conditions with a supported operator negate by switching
// operator and never report true.
func (c *Condition) IsNegated() bool { return c.negated }

// IsActive reports whether c takes part in evaluation.
func (c *Condition) IsActive() bool { return !c.disabled }

// Field returns the field name a non-expression condition restricts.
func (c *Condition) Field() (string, bool) {
	if c.expression {
		return "", false
	}
	return c.operand, true
}

// Constant reports the truth value of a constant expression condition
// ("true" or "false", taking negation into account).
func (c *Condition) Constant() (value, ok bool) {
	if !c.expression {
		return false, false
	}
	switch strings.ToLower(c.operand) {
	case ExprTrue:
		return !c.negated, true
	case ExprFalse:
		return c.negated, true
	default:
		return false, false
	}
}

// Disable removes c from evaluation. A disabled condition is empty.
func (c *Condition) Disable() { c.disabled = true }

// IsEmpty implements Node.
func (c *Condition) IsEmpty() bool { return c.disabled }

// IsCompound implements Node. A condition is never compound.
func (c *Condition) IsCompound() bool { return false }

// Negate implements Node. Supported operators flip to their inverse;
// expressions and unknown operators toggle the negated flag.
func (c *Condition) Negate() {
	if !c.expression {
		if inv, ok := inverse[c.operator]; ok {
			c.operator = inv
			return
		}
	}
	c.negated = !c.negated
}

// Clone returns an independent copy of c.
func (c *Condition) Clone() *Condition {
	cp := *c
	cp.value = ir.CloneValue(c.value)
	return &cp
}

// CloneNode implements Node.
func (c *Condition) CloneNode() Node { return c.Clone() }

// Peel implements Node.
func (c *Condition) Peel() Node { return c }

// Find implements Node. A string key matches a condition restricting that
// field; a Node key matches a deep-equal condition.
func (c *Condition) Find(key any) []Node {
	switch k := key.(type) {
	case string:
		if f, ok := c.Field(); ok && f == k {
			return []Node{c}
		}
	case Node:
		if reflect.DeepEqual(Node(c), k) {
			return []Node{c}
		}
	}
	return nil
}

// WithValue returns a copy of c comparing against v.
func (c *Condition) WithValue(v ir.Value) *Condition {
	cp := c.Clone()
	cp.value = v
	return cp
}

// ToWords implements Node.
func (c *Condition) ToWords() string {
	if c.disabled {
		return ""
	}
	if c.expression {
		if c.negated {
			return "not (" + c.operand + ")"
		}
		return c.operand
	}
	words := fmt.Sprintf("%s %s %s", c.operand, strings.ToLower(c.operator), valueWords(c.value))
	if c.negated {
		return "not (" + words + ")"
	}
	return words
}

func valueWords(v ir.Value) string {
	switch val := v.(type) {
	case nil, ir.Null:
		return "empty"
	case ir.Bool:
		if val {
			return "true"
		}
		return "false"
	case ir.Seq:
		if len(val) == 0 {
			return "nothing"
		}
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = valueWords(elem)
		}
		return strings.Join(parts, " or ")
	default:
		return val.String()
	}
}
