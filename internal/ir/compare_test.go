package ir

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualIsStrict(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Float(1)), "int and float must not be equal")
	assert.False(t, Equal(Text("1"), Int(1)))
	assert.False(t, Equal(Bool(true), Int(1)))
	assert.True(t, Equal(Null{}, nil))
	assert.False(t, Equal(Null{}, Text("")))
	assert.True(t, Equal(Seq{Int(1), Text("a")}, Seq{Int(1), Text("a")}))
	assert.False(t, Equal(Seq{Int(1)}, Seq{Int(1), Int(2)}))
}

func TestCompareKindRanking(t *testing.T) {
	ordered := []Value{
		Null{},
		Bool(false),
		Bool(true),
		Int(-3),
		Float(-2.5),
		Int(0),
		Float(0.5),
		Int(10),
		Text(""),
		Text("A"),
		Text("a"),
		Text("ab"),
		Seq{},
		Seq{Int(1)},
	}

	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%v < %v", ordered[i], ordered[j])
			case i > j:
				assert.Equal(t, 1, got, "%v > %v", ordered[i], ordered[j])
			default:
				assert.Equal(t, 0, got)
			}
		}
	}
}

func TestCompareNumbersAcrossKinds(t *testing.T) {
	assert.Equal(t, 0, Compare(Int(2), Float(2)))
	assert.Equal(t, -1, Compare(Int(2), Float(2.1)))
	assert.Equal(t, 1, Compare(Float(3), Int(2)))
}

func TestCompareSortIsTotal(t *testing.T) {
	vals := []Value{Text("b"), Int(3), Null{}, Float(1.5), Text("a"), Bool(true)}
	slices.SortStableFunc(vals, Compare)

	assert.Equal(t, []Value{Null{}, Bool(true), Float(1.5), Int(3), Text("a"), Text("b")}, vals)
}

func TestKeyGroupsEqualValues(t *testing.T) {
	m := map[any]int{}
	m[Key(Seq{Int(1), Int(2)})]++
	m[Key(Seq{Int(1), Int(2)})]++
	m[Key(Int(1))]++
	m[Key(Float(1))]++
	m[Key(nil)]++
	m[Key(Null{})]++

	assert.Equal(t, 2, m[Key(Seq{Int(1), Int(2)})])
	assert.Equal(t, 1, m[Key(Int(1))])
	assert.Equal(t, 2, m[Key(Null{})])
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, Float(3), Coerce(Int(3), KindFloat))
	assert.Equal(t, Int(3), Coerce(Float(3), KindInt))
	assert.Equal(t, Float(3.5), Coerce(Float(3.5), KindInt), "lossy conversion is refused")
	assert.Equal(t, Text("3"), Coerce(Text("3"), KindInt))
	assert.Equal(t, Seq{Float(1), Text("x")}, Coerce(Seq{Int(1), Text("x")}, KindFloat))
	assert.Equal(t, Null{}, Coerce(Null{}, KindInt))
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind Kind
		want Value
		ok   bool
	}{
		{"text to int", Text("2"), KindInt, Int(2), true},
		{"integral text to int", Text("2.0"), KindInt, Int(2), true},
		{"fractional text on int field", Text("2.5"), KindInt, Float(2.5), true},
		{"fractional float on int field", Float(2.5), KindInt, Float(2.5), true},
		{"int to float", Int(2), KindFloat, Float(2), true},
		{"text to float", Text("10.5"), KindFloat, Float(10.5), true},
		{"one to bool", Int(1), KindBool, Bool(true), true},
		{"zero float to bool", Float(0), KindBool, Bool(false), true},
		{"word to bool", Text("false"), KindBool, Bool(false), true},
		{"int to text", Int(7), KindText, Text("7"), true},
		{"null passes", Null{}, KindInt, Null{}, true},
		{"seq converts elements", Seq{Text("1"), Int(2)}, KindInt, Seq{Int(1), Int(2)}, true},
		{"word on int field", Text("two"), KindInt, Text("two"), false},
		{"nan text on float field", Text("NaN"), KindFloat, Text("NaN"), false},
		{"two on bool field", Int(2), KindBool, Int(2), false},
		{"bool on int field", Bool(true), KindInt, Bool(true), false},
		{"float on text field", Float(1.5), KindText, Float(1.5), false},
		{"seq with a bad element", Seq{Int(1), Text("x")}, KindInt, Seq{Int(1), Text("x")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Convert(tt.in, tt.kind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
