package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/scope"
)

func invoiceModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := New("invoice", []Field{
		{Name: "name", Type: TypeString, Mandatory: true},
		{Name: "amount", Type: TypeFloat},
		{Name: "qty", Type: TypeInteger},
		{Name: "paid", Type: TypeBoolean},
	}, opts...)
	require.NoError(t, err)
	return m
}

func TestNewPrependsIDField(t *testing.T) {
	m := invoiceModel(t)
	assert.Equal(t, []string{"id", "name", "amount", "qty", "paid"}, m.FieldNames())
	assert.True(t, m.HasIDField())

	typ, ok := m.IDType()
	assert.True(t, ok)
	assert.Equal(t, TypeInteger, typ)
}

func TestNewWithoutID(t *testing.T) {
	m := invoiceModel(t, WithoutID())
	assert.False(t, m.HasIDField())
	assert.Equal(t, []string{"name", "amount", "qty", "paid"}, m.FieldNames())

	_, ok := m.IDType()
	assert.False(t, ok)
}

func TestNewKeepsDeclaredIDField(t *testing.T) {
	m, err := New("user", []Field{{Name: "name"}, {Name: "code", Type: TypeString}}, WithIDField("code"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "code"}, m.FieldNames())

	typ, _ := m.IDType()
	assert.Equal(t, TypeString, typ)
}

func TestNewRejectsBadFields(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)

	_, err = New("t", []Field{{Name: "a"}, {Name: "a"}})
	assert.ErrorContains(t, err, "duplicate field")

	_, err = New("t", []Field{{Name: "a", Type: "decimal"}})
	assert.ErrorContains(t, err, "unknown field type")
}

func TestFieldResolution(t *testing.T) {
	m := invoiceModel(t)

	f, err := m.Field("amount")
	require.NoError(t, err)
	assert.Equal(t, TypeFloat, f.Type)

	_, err = m.Field("nope")
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
	assert.Contains(t, err.Error(), `"nope"`)

	kind, err := m.ResolveField("qty")
	require.NoError(t, err)
	assert.Equal(t, ir.KindInt, kind)
}

func TestAddConditionFailsFast(t *testing.T) {
	m := invoiceModel(t)

	err := m.AddCondition("missing", 1)
	require.Error(t, err)
	assert.True(t, IsUnknownField(err))
	assert.True(t, m.Scope().IsEmpty(), "failed condition must not be attached")

	require.NoError(t, m.AddCondition("amount", ">", 10))
	require.NoError(t, m.AddCondition("paid", true))
	assert.Equal(t, "amount > 10 and paid = true", m.Scope().ToWords())
}

func TestAddConditionCoercesToFieldType(t *testing.T) {
	m := invoiceModel(t)
	require.NoError(t, m.AddCondition("amount", 10))

	found := m.Scope().Find("amount")
	require.Len(t, found, 1)
	c, ok := found[0].(*scope.Condition)
	require.True(t, ok)
	assert.Equal(t, ir.Float(10), c.Value())
}

func TestScopeReturnsCopy(t *testing.T) {
	m := invoiceModel(t)
	require.NoError(t, m.AddCondition("qty", 1))

	s := m.Scope()
	s.Negate()
	assert.Equal(t, "qty = 1", m.Scope().ToWords())
}

func TestOrderAndLimit(t *testing.T) {
	m := invoiceModel(t)
	require.NoError(t, m.AddOrder("name", false))
	require.NoError(t, m.AddOrder("amount", true))
	assert.Error(t, m.AddOrder("missing", false))

	assert.Equal(t, []OrderKey{{Field: "name", Direction: Asc}, {Field: "amount", Direction: Desc}}, m.Order())

	require.NoError(t, m.SetLimit(5, 2))
	assert.Equal(t, Limit{Count: 5, Offset: 2}, m.Limit())
	assert.Error(t, m.SetLimit(-2, 0))
	assert.Error(t, m.SetLimit(1, -1))
}

func TestLoadedIdentity(t *testing.T) {
	m := invoiceModel(t)
	assert.False(t, m.Loaded())
	assert.Equal(t, ir.Null{}, m.ID())

	m.SetLoaded(ir.Int(3))
	assert.True(t, m.Loaded())
	assert.Equal(t, ir.Int(3), m.ID())

	m.Unload()
	assert.False(t, m.Loaded())
}

func TestCloneIsSnapshot(t *testing.T) {
	m := invoiceModel(t)
	require.NoError(t, m.AddCondition("qty", 1))
	require.NoError(t, m.AddOrder("name", false))

	cp := m.Clone()
	require.NoError(t, cp.AddCondition("paid", true))
	require.NoError(t, cp.AddOrder("qty", true))

	assert.Equal(t, "qty = 1", m.Scope().ToWords())
	assert.Len(t, m.Order(), 1)
	assert.Same(t, m.Hooks(), cp.Hooks())
}

func TestHooksFireInRegistrationOrder(t *testing.T) {
	h := NewHooks()
	var seen []string
	h.On("before_select", func(event string, args ...any) {
		seen = append(seen, "first:"+event)
	})
	h.On("before_select", func(event string, args ...any) {
		seen = append(seen, "second")
	})
	h.On("after_select", func(event string, args ...any) {
		seen = append(seen, "other")
	})

	h.Notify("before_select", 1)
	assert.Equal(t, []string{"first:before_select", "second"}, seen)

	var nilHooks *Hooks
	assert.NotPanics(t, func() { nilHooks.Notify("x") })
}

func TestOrderKeyDirection(t *testing.T) {
	assert.True(t, OrderKey{Field: "a", Direction: "DESC"}.IsDesc())
	assert.True(t, OrderKey{Field: "a", Direction: " Desc "}.IsDesc())
	assert.False(t, OrderKey{Field: "a", Direction: "descending"}.IsDesc())
	assert.False(t, OrderKey{Field: "a"}.IsDesc())
	assert.Equal(t, "a desc", OrderKey{Field: "a", Direction: "desc"}.String())
}

func TestLimitArgs(t *testing.T) {
	tests := []struct {
		name       string
		limit      Limit
		count      int
		offset     int
		restricted bool
		capped     bool
		words      string
	}{
		{"zero value", Limit{}, 0, 0, false, false, "none"},
		{"unlimited no offset", Limit{Count: Unlimited}, 0, 0, false, false, "none"},
		{"count", Limit{Count: 2}, 2, 0, true, true, "2"},
		{"count and offset", Limit{Count: 2, Offset: 1}, 2, 1, true, true, "2 offset 1"},
		{"offset only", Limit{Count: Unlimited, Offset: 3}, 0, 3, true, false, "offset 3"},
		{"zero with offset", Limit{Count: 0, Offset: 3}, 0, 3, true, true, "0 offset 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, offset, restricted, capped := tt.limit.Args()
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.restricted, restricted)
			assert.Equal(t, tt.capped, capped)
			assert.Equal(t, tt.words, tt.limit.String())
		})
	}
}
