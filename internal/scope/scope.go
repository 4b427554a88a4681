package scope

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/scopeq/internal/ir"
)

// Junction is the boolean combinator of a Scope's children.
type Junction string

const (
	And Junction = "AND"
	Or  Junction = "OR"
)

// Flip returns the De Morgan dual of j.
func (j Junction) Flip() Junction {
	if j == Or {
		return And
	}
	return Or
}

// ParseJunction accepts "and"/"or" in any case. Anything else is an error.
func ParseJunction(s string) (Junction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(And):
		return And, nil
	case string(Or):
		return Or, nil
	default:
		return "", fmt.Errorf("unknown junction %q", s)
	}
}

// Scope is a boolean tree of Conditions and nested Scopes.
//
// An empty Scope (no active components) imposes no restriction. A Scope
// holding only False() denies every row.
type Scope struct {
	junction   Junction
	components []Node
}

func (*Scope) node() {}

// New builds a scope from nodes. Nodes are cloned; nil and empty nodes are
// skipped.
func New(junction Junction, nodes ...Node) *Scope {
	s := &Scope{junction: normalizeJunction(junction)}
	for _, n := range nodes {
		if isNilNode(n) || n.IsEmpty() {
			continue
		}
		s.components = append(s.components, n.CloneNode())
	}
	return s
}

// Empty returns a scope with no restriction.
func Empty() *Scope {
	return &Scope{junction: And}
}

// DenyAll returns a scope that matches no row.
func DenyAll() *Scope {
	return &Scope{junction: And, components: []Node{False()}}
}

func normalizeJunction(j Junction) Junction {
	if j == Or {
		return Or
	}
	return And
}

func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *Condition:
		return v == nil
	case *Scope:
		return v == nil
	}
	return false
}

// Parse builds a scope from shorthand items joined by junction:
//
//	"expr"                           pure expression condition
//	[]any{"field", value}            condition arguments
//	[]any{"field", "op", value}      condition arguments
//	[]any{[]any{c1, c2, ...}}        nested OR scope over c1, c2, ...
//	Node                             cloned as-is
//	true                             no restriction (skipped)
//	false                            deny-all condition
//
// Items that produce an empty component are skipped.
func Parse(items []any, junction Junction) (*Scope, error) {
	s := &Scope{junction: normalizeJunction(junction)}
	for i, item := range items {
		n, err := parseItem(item)
		if err != nil {
			return nil, fmt.Errorf("scope item %d: %w", i, err)
		}
		if isNilNode(n) || n.IsEmpty() {
			continue
		}
		s.components = append(s.components, n.CloneNode())
	}
	return s, nil
}

func parseItem(item any) (Node, error) {
	switch v := item.(type) {
	case nil:
		return nil, nil
	case Node:
		return v, nil
	case bool:
		if v {
			return nil, nil
		}
		return False(), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return NewCondition(v)
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		if len(v) == 1 {
			if inner, ok := v[0].([]any); ok {
				return Parse(inner, Or)
			}
		}
		operand, ok := v[0].(string)
		if !ok {
			return nil, newInvalidConditionError("", "condition operand must be a string, got %T", v[0])
		}
		return NewCondition(operand, v[1:]...)
	default:
		return nil, newInvalidConditionError("", "unsupported scope item %T", item)
	}
}

// Create builds a scope from any shorthand:
//
//	*Scope                              returned as-is
//	*Condition, bool, string            single-component AND scope
//	[]any{"field", ...}                 single condition
//	[]any{[]any{...}, []any{...}}       OR of the inner conditions
//	nil                                 no restriction
func Create(v any) (*Scope, error) {
	switch val := v.(type) {
	case nil:
		return Empty(), nil
	case *Scope:
		return val, nil
	case []any:
		if len(val) > 0 && allLists(val) {
			return Parse(val, Or)
		}
		return Parse([]any{val}, And)
	default:
		return Parse([]any{val}, And)
	}
}

func allLists(items []any) bool {
	for _, item := range items {
		if _, ok := item.([]any); !ok {
			return false
		}
	}
	return true
}

// Junction returns the scope's junction.
func (s *Scope) Junction() Junction { return s.junction }

// Components returns the scope's children, including inactive ones.
// The returned slice must not be modified.
func (s *Scope) Components() []Node { return s.components }

// ActiveComponents returns the children that take part in evaluation.
func (s *Scope) ActiveComponents() []Node {
	active := make([]Node, 0, len(s.components))
	for _, c := range s.components {
		if !c.IsEmpty() {
			active = append(active, c)
		}
	}
	return active
}

// IsEmpty implements Node.
func (s *Scope) IsEmpty() bool {
	for _, c := range s.components {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// IsCompound implements Node.
func (s *Scope) IsCompound() bool {
	return len(s.ActiveComponents()) > 1
}

// AddComponent appends a clone of n, returning s for chaining.
func (s *Scope) AddComponent(n Node) *Scope {
	if isNilNode(n) {
		return s
	}
	s.components = append(s.components, n.CloneNode())
	return s
}

// And narrows s by n. An OR scope is first wrapped into a new AND parent
// so the prior semantics survive as one child.
func (s *Scope) And(n Node) *Scope {
	if s.junction == Or {
		if s.IsEmpty() {
			s.junction = And
			s.components = nil
		} else {
			self := s.Clone()
			s.junction = And
			s.components = []Node{self}
		}
	}
	return s.AddComponent(n)
}

// Or widens s by n. The current state always becomes the first child of a
// fresh two-child OR.
func (s *Scope) Or(n Node) *Scope {
	self := s.Clone()
	s.junction = Or
	s.components = []Node{self}
	return s.AddComponent(n)
}

// Merge returns a new scope joining a and b under junction. Inputs are not
// modified.
func Merge(a, b Node, junction Junction) *Scope {
	return New(junction, a, b)
}

// MergeAnd returns a new AND scope over nodes.
func MergeAnd(nodes ...Node) *Scope {
	return New(And, nodes...)
}

// MergeOr returns a new OR scope over nodes.
func MergeOr(nodes ...Node) *Scope {
	return New(Or, nodes...)
}

// Negate implements Node (De Morgan, eager and in place).
func (s *Scope) Negate() {
	s.junction = s.junction.Flip()
	for _, c := range s.components {
		c.Negate()
	}
}

// Not returns a negated deep copy of n, leaving n untouched.
func Not(n Node) Node {
	cp := n.CloneNode()
	cp.Negate()
	return cp
}

// Clone returns an independent deep copy of s.
func (s *Scope) Clone() *Scope {
	cp := &Scope{junction: s.junction}
	if len(s.components) > 0 {
		cp.components = make([]Node, len(s.components))
		for i, c := range s.components {
			cp.components[i] = c.CloneNode()
		}
	}
	return cp
}

// CloneNode implements Node.
func (s *Scope) CloneNode() Node { return s.Clone() }

// Peel implements Node.
func (s *Scope) Peel() Node {
	active := s.ActiveComponents()
	if len(active) != 1 {
		return s
	}
	return active[0].Peel()
}

// Find implements Node.
func (s *Scope) Find(key any) []Node {
	var found []Node
	for _, c := range s.components {
		if k, ok := key.(Node); ok {
			if reflect.DeepEqual(c, k) {
				found = append(found, c)
				continue
			}
			if sub, ok := c.(*Scope); ok {
				found = append(found, sub.Find(key)...)
			}
			continue
		}
		found = append(found, c.Find(key)...)
	}
	if len(found) == 0 {
		return nil
	}
	return found
}

// ToWords implements Node. A compound child is parenthesized only when s is
// itself compound.
func (s *Scope) ToWords() string {
	active := s.ActiveComponents()
	if len(active) == 0 {
		return ""
	}
	compound := len(active) > 1
	parts := make([]string, len(active))
	for i, c := range active {
		words := c.ToWords()
		if compound && c.IsCompound() {
			words = "(" + words + ")"
		}
		parts[i] = words
	}
	return strings.Join(parts, " "+strings.ToLower(string(s.junction))+" ")
}

// Resolver resolves field names when a tree is bound to a model.
type Resolver interface {
	// ResolveField returns the declared kind of the field, or an error when
	// the field is unknown. ir.KindNull means "untyped".
	ResolveField(name string) (ir.Kind, error)
}

// Bind validates every field reference in n against r and returns a bound
// copy whose values are coerced to the declared field kinds. n is not
// modified.
func Bind(n Node, r Resolver) (Node, error) {
	switch v := n.(type) {
	case *Condition:
		return v.Bind(r)
	case *Scope:
		return v.Bind(r)
	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
}

// Bind returns a bound copy of c. Expressions are not resolved.
func (c *Condition) Bind(r Resolver) (*Condition, error) {
	field, ok := c.Field()
	if !ok || r == nil {
		return c.Clone(), nil
	}
	kind, err := r.ResolveField(field)
	if err != nil {
		return nil, err
	}
	if kind == ir.KindNull || !IsSupportedOperator(c.operator) {
		return c.Clone(), nil
	}
	if IsPatternOperator(c.operator) {
		if kind == ir.KindFloat {
			return nil, NewTypeMismatchError(field, c.operator, "pattern operators do not apply to float fields")
		}
		return c.Clone(), nil
	}
	v, ok := ir.Convert(c.value, kind)
	if !ok {
		return nil, NewTypeMismatchError(field, c.operator, "%s value %s does not fit a %s field", c.value.Kind(), c.value, kind)
	}
	return c.WithValue(v), nil
}

// IsPatternOperator reports whether op matches the text form of a field
// against a pattern.
func IsPatternOperator(op string) bool {
	switch op {
	case OpLike, OpNotLike, OpRegexp, OpNotRegexp:
		return true
	}
	return false
}

// Bind returns a bound copy of s.
func (s *Scope) Bind(r Resolver) (*Scope, error) {
	cp := &Scope{junction: s.junction}
	for _, c := range s.components {
		bound, err := Bind(c, r)
		if err != nil {
			return nil, err
		}
		cp.components = append(cp.components, bound)
	}
	return cp, nil
}

// Evaluate matches s against row with the default Matcher.
func (s *Scope) Evaluate(row ir.Row) (bool, error) {
	return Matcher{}.Match(s, row)
}

// Evaluate matches c against row with the default Matcher.
func (c *Condition) Evaluate(row ir.Row) (bool, error) {
	return Matcher{}.Match(c, row)
}
