package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Verify all types implement Value (compile-time check via assignment)
	var _ Value = Null{}
	var _ Value = Bool(true)
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Text("test")
	var _ Value = Seq{Text("a"), Int(1)}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null{}, ""},
		{"true", Bool(true), "1"},
		{"false", Bool(false), ""},
		{"int", Int(-7), "-7"},
		{"integral float", Float(4), "4"},
		{"float", Float(2.5), "2.5"},
		{"text", Text("abc"), "abc"},
		{"seq", Seq{Int(1), Text("x")}, "1, x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 3, Int(3)},
		{"int32", int32(3), Int(3)},
		{"uint16", uint16(9), Int(9)},
		{"float64", 1.25, Float(1.25)},
		{"string", "s", Text("s")},
		{"bytes", []byte("raw"), Text("raw")},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("1.5"), Float(1.5)},
		{"strings", []string{"a", "b"}, Seq{Text("a"), Text("b")}},
		{"mixed", []any{1, "x", nil}, Seq{Int(1), Text("x"), Null{}}},
		{"value passthrough", Int(5), Int(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejectsUnsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")

	_, err = FromGo(uint64(1) << 63)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows int64")
}

func TestToGoRoundTrip(t *testing.T) {
	in := Seq{Null{}, Bool(false), Int(2), Float(0.5), Text("t")}
	out := ToGo(in)
	assert.Equal(t, []any{nil, false, int64(2), 0.5, "t"}, out)

	back, err := FromGo(out)
	require.NoError(t, err)
	assert.True(t, Equal(in, back))
}

func TestCloneValueSeqIsIndependent(t *testing.T) {
	orig := Seq{Int(1), Seq{Int(2)}}
	clone := CloneValue(orig).(Seq)
	clone[1].(Seq)[0] = Int(99)

	assert.Equal(t, Int(2), orig[1].(Seq)[0])
}

func TestUnmarshalValueNumbers(t *testing.T) {
	v, err := UnmarshalValue([]byte(`7`))
	require.NoError(t, err)
	assert.Equal(t, Int(7), v)

	v, err = UnmarshalValue([]byte(`7.0`))
	require.NoError(t, err)
	assert.Equal(t, Float(7), v)

	v, err = UnmarshalValue([]byte(`[1,"a",null,true]`))
	require.NoError(t, err)
	assert.Equal(t, Seq{Int(1), Text("a"), Null{}, Bool(true)}, v)

	_, err = UnmarshalValue([]byte(`{"a":1}`))
	require.Error(t, err)
}

func TestSeqJSON(t *testing.T) {
	data, err := json.Marshal(Seq{Int(1), Text("b")})
	require.NoError(t, err)
	assert.Equal(t, `[1,"b"]`, string(data))

	var seq Seq
	require.NoError(t, json.Unmarshal([]byte(`[2, 3.5]`), &seq))
	assert.Equal(t, Seq{Int(2), Float(3.5)}, seq)
}

func TestMarshalValueRejectsNonFinite(t *testing.T) {
	_, err := MarshalValue(Float(posInf()))
	require.Error(t, err)
}

func posInf() float64 {
	zero := 0.0
	return 1 / zero
}
