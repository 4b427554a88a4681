package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeq/internal/ir"
)

func TestCreateArrayOfArraysBuildsOr(t *testing.T) {
	s, err := Create([]any{
		[]any{"status", "active"},
		[]any{"status", "pending"},
	})
	require.NoError(t, err)

	assert.Equal(t, Or, s.Junction())
	assert.Len(t, s.Components(), 2)
	assert.Equal(t, "status = active or status = pending", s.ToWords())
}

func TestCreateShorthands(t *testing.T) {
	flat, err := Create([]any{"age", ">", 18})
	require.NoError(t, err)
	assert.Equal(t, "age > 18", flat.ToWords())

	expr, err := Create("price * qty > 100")
	require.NoError(t, err)
	assert.Equal(t, "price * qty > 100", expr.ToWords())

	all, err := Create(true)
	require.NoError(t, err)
	assert.True(t, all.IsEmpty())

	none, err := Create(false)
	require.NoError(t, err)
	assert.Equal(t, "false", none.ToWords())

	empty, err := Create(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	existing := New(And, MustCondition("a", 1))
	same, err := Create(existing)
	require.NoError(t, err)
	assert.Same(t, existing, same)
}

func TestParseNestedOrAndSkipsEmpty(t *testing.T) {
	s, err := Parse([]any{
		[]any{"gender", "M"},
		[]any{[]any{
			[]any{"age", ">", 18},
			[]any{"vip", true},
		}},
		true,
		nil,
		[]any{},
		New(Or),
	}, And)
	require.NoError(t, err)

	assert.Len(t, s.Components(), 2)
	assert.Equal(t, "gender = M and (age > 18 or vip = true)", s.ToWords())
}

func TestParseRejectsBadItems(t *testing.T) {
	_, err := Parse([]any{42}, And)
	assert.True(t, IsInvalidCondition(err))

	_, err = Parse([]any{[]any{7, "x"}}, And)
	assert.True(t, IsInvalidCondition(err))
}

func TestScopeEvaluateScenario(t *testing.T) {
	s := New(And,
		MustCondition("gender", "M"),
		New(Or,
			MustCondition("age", ">", 18),
			MustCondition("vip", true),
		),
	)

	ok, err := s.Evaluate(ir.Row{"gender": ir.Text("M"), "age": ir.Int(15), "vip": ir.Bool(true)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Evaluate(ir.Row{"gender": ir.Text("F"), "age": ir.Int(30), "vip": ir.Bool(true)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopeEmptyMatchesEverything(t *testing.T) {
	ok, err := Empty().Evaluate(ir.Row{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = New(Or).Evaluate(ir.Row{"a": ir.Int(1)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DenyAll().Evaluate(ir.Row{"a": ir.Int(1)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopeIsCompoundCountsActiveComponents(t *testing.T) {
	disabled := MustCondition("b", 2)
	disabled.Disable()

	s := Empty().AddComponent(MustCondition("a", 1)).AddComponent(disabled)
	assert.False(t, s.IsCompound())
	assert.Len(t, s.ActiveComponents(), 1)

	s.AddComponent(MustCondition("c", 3))
	assert.True(t, s.IsCompound())
}

func TestScopeAndWrapsOrJunction(t *testing.T) {
	s := New(Or, MustCondition("a", 1), MustCondition("b", 2))
	s.And(MustCondition("c", 3))

	assert.Equal(t, And, s.Junction())
	require.Len(t, s.Components(), 2)
	inner, ok := s.Components()[0].(*Scope)
	require.True(t, ok)
	assert.Equal(t, Or, inner.Junction())
	assert.Equal(t, "(a = 1 or b = 2) and c = 3", s.ToWords())
}

func TestScopeAndOnAndAppends(t *testing.T) {
	s := New(And, MustCondition("a", 1))
	s.And(MustCondition("b", 2))

	assert.Len(t, s.Components(), 2)
	assert.Equal(t, "a = 1 and b = 2", s.ToWords())
}

func TestScopeOrAlwaysWraps(t *testing.T) {
	s := New(And, MustCondition("a", 1), MustCondition("b", 2))
	s.Or(MustCondition("c", 3))

	assert.Equal(t, Or, s.Junction())
	require.Len(t, s.Components(), 2)
	assert.Equal(t, "(a = 1 and b = 2) or c = 3", s.ToWords())

	ok, err := s.Evaluate(ir.Row{"c": ir.Int(3)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := New(And, MustCondition("a", 1))
	b := MustCondition("b", 2)

	m := Merge(a, b, Or)
	m.Negate()

	assert.Equal(t, "a = 1", a.ToWords())
	assert.Equal(t, OpEq, b.Operator())
	assert.Equal(t, "a != 1 and b != 2", m.ToWords())

	assert.Equal(t, "a = 1 and b = 2", MergeAnd(a, b).ToWords())
	assert.Equal(t, "a = 1 or b = 2", MergeOr(a, b).ToWords())
}

func TestScopeNegateIsStructural(t *testing.T) {
	s := New(And,
		MustCondition("gender", "M"),
		New(Or, MustCondition("age", ">", 18), MustCondition("vip", true)),
	)
	s.Negate()

	assert.Equal(t, Or, s.Junction())
	assert.Equal(t, "gender != M or (age <= 18 and vip != true)", s.ToWords())

	s.Negate()
	assert.Equal(t, "gender = M and (age > 18 or vip = true)", s.ToWords())
}

func TestNotLeavesOriginal(t *testing.T) {
	s := New(And, MustCondition("a", ">", 1))
	n := Not(s)

	assert.Equal(t, "a > 1", s.ToWords())
	assert.Equal(t, "a <= 1", n.ToWords())
}

func TestScopeFind(t *testing.T) {
	target := MustCondition("status", "active")
	s := New(And,
		MustCondition("age", ">", 18),
		New(Or, target, MustCondition("status", "pending")),
	)

	byField := s.Find("status")
	require.Len(t, byField, 2)
	assert.Equal(t, "status = active", byField[0].ToWords())
	assert.Equal(t, "status = pending", byField[1].ToWords())

	byNode := s.Find(MustCondition("status", "active"))
	require.Len(t, byNode, 1)
	assert.Equal(t, "status = active", byNode[0].ToWords())

	assert.Nil(t, s.Find("missing"))
	assert.Nil(t, s.Find(MustCondition("age", "<", 1)))
}

func TestScopePeel(t *testing.T) {
	c := MustCondition("a", 1)
	nested := New(And, New(Or, c))

	peeled := nested.Peel()
	assert.Equal(t, "a = 1", peeled.ToWords())
	_, isCondition := peeled.(*Condition)
	assert.True(t, isCondition)

	multi := New(And, MustCondition("a", 1), MustCondition("b", 2))
	assert.Same(t, multi, multi.Peel())
}

func TestToWordsParenthesizesOnlyInsideCompound(t *testing.T) {
	single := New(And, New(Or, MustCondition("a", 1), MustCondition("b", 2)))
	assert.Equal(t, "a = 1 or b = 2", single.ToWords())

	compound := New(And, MustCondition("c", 3), New(Or, MustCondition("a", 1), MustCondition("b", 2)))
	assert.Equal(t, "c = 3 and (a = 1 or b = 2)", compound.ToWords())

	assert.Equal(t, "", Empty().ToWords())
}

func TestCloneIsDeep(t *testing.T) {
	orig := New(And, MustCondition("a", 1), New(Or, MustCondition("b", 2), MustCondition("c", 3)))
	cp := orig.Clone()
	cp.Negate()
	cp.And(MustCondition("d", 4))

	assert.Equal(t, "a = 1 and (b = 2 or c = 3)", orig.ToWords())
}

func TestScopeBindValidatesFields(t *testing.T) {
	s := New(And, MustCondition("amount", 10), New(Or, MustCondition("missing", 1)))
	_, err := s.Bind(kinds{"amount": ir.KindFloat})
	require.Error(t, err)

	bound, err := Bind(New(And, MustCondition("amount", 10)), kinds{"amount": ir.KindFloat})
	require.NoError(t, err)
	found := bound.Find("amount")
	require.Len(t, found, 1)
	assert.Equal(t, ir.Float(10), found[0].(*Condition).Value())
}

func TestParseJunction(t *testing.T) {
	j, err := ParseJunction("or")
	require.NoError(t, err)
	assert.Equal(t, Or, j)

	j, err = ParseJunction("")
	require.NoError(t, err)
	assert.Equal(t, And, j)

	_, err = ParseJunction("xor")
	assert.Error(t, err)
}
