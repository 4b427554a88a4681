package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindSeq
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindSeq:
		return "seq"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a sealed interface representing a condition operand or a row cell.
// Only Null, Bool, Int, Float, Text and Seq implement it.
type Value interface {
	Kind() Kind
	String() string
	value() // Sealed - only these types implement it
}

// Null represents an absent or SQL NULL value.
type Null struct{}

func (Null) value()         {}
func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "" }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Bool represents a boolean value.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }

// String renders booleans the way a loosely typed string cast would:
// "1" for true and "" for false.
func (b Bool) String() string {
	if b {
		return "1"
	}
	return ""
}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value()           {}
func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float represents a floating point value.
type Float float64

func (Float) value()     {}
func (Float) Kind() Kind { return KindFloat }

// String renders the shortest representation; integral floats drop the
// fraction (4.0 renders as "4").
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// Text represents a string value.
type Text string

func (Text) value()           {}
func (Text) Kind() Kind       { return KindText }
func (t Text) String() string { return string(t) }

// Seq represents an ordered sequence of values, used by IN / NOT IN.
type Seq []Value

func (Seq) value()     {}
func (Seq) Kind() Kind { return KindSeq }

// String joins the element renderings with ", ".
func (s Seq) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON implements json.Marshaler for Seq.
func (s Seq) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("seq[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Seq.
func (s *Seq) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	seq, ok := v.(Seq)
	if !ok {
		return fmt.Errorf("expected JSON array, got %s", v.Kind())
	}
	*s = seq
	return nil
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Number returns the numeric value of an Int or Float.
func Number(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	default:
		return 0, false
	}
}

// FromGo converts a native Go value (as produced by YAML, JSON, CUE or a
// database driver) into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case string:
		return Text(val), nil
	case []byte:
		return Text(string(val)), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case []string:
		seq := make(Seq, len(val))
		for i, s := range val {
			seq[i] = Text(s)
		}
		return seq, nil
	case []int:
		seq := make(Seq, len(val))
		for i, n := range val {
			seq[i] = Int(n)
		}
		return seq, nil
	case []int64:
		seq := make(Seq, len(val))
		for i, n := range val {
			seq[i] = Int(n)
		}
		return seq, nil
	case []any:
		seq := make(Seq, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			seq[i] = ev
		}
		return seq, nil
	case []Value:
		return Seq(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

// MustFromGo is FromGo for literals in tests and fixtures.
// Panics on unsupported types.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ToGo converts a Value into its native Go counterpart.
// Null becomes nil and Seq becomes []any.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Text:
		return string(val)
	case Seq:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// CloneValue returns a deep copy of v. Only Seq carries shared state.
func CloneValue(v Value) Value {
	seq, ok := v.(Seq)
	if !ok {
		return v
	}
	out := make(Seq, len(seq))
	for i, elem := range seq {
		out[i] = CloneValue(elem)
	}
	return out
}

// MarshalValue marshals a Value to JSON bytes.
// Uses type-switch dispatch to handle all Value types correctly.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float %v cannot be encoded", f)
		}
		return json.Marshal(f)
	case Text:
		return json.Marshal(string(val))
	case Seq:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON document into a Value. Numbers without a
// fraction or exponent become Int, all others Float. Objects are rejected:
// rows are decoded with Row.UnmarshalJSON.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

func fromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case json.Number:
		s := string(val)
		if !strings.ContainsAny(s, ".eE") {
			n, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("number out of int64 range: %s", val)
			}
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid float %s: %w", val, err)
		}
		return Float(f), nil
	case []any:
		seq := make(Seq, len(val))
		for i, elem := range val {
			ev, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			seq[i] = ev
		}
		return seq, nil
	case map[string]any:
		return nil, fmt.Errorf("objects are not values")
	default:
		return FromGo(val)
	}
}

// Coerce converts v to kind k when the conversion is lossless: Int to
// Float, integral Float to Int, and the same for Seq elements. Any other
// combination returns v unchanged.
func Coerce(v Value, k Kind) Value {
	switch val := v.(type) {
	case Int:
		if k == KindFloat {
			return Float(val)
		}
	case Float:
		if k == KindInt && float64(val) == math.Trunc(float64(val)) &&
			float64(val) >= math.MinInt64 && float64(val) < math.MaxInt64 {
			return Int(int64(val))
		}
	case Seq:
		out := make(Seq, len(val))
		for i, elem := range val {
			out[i] = Coerce(elem, k)
		}
		return out
	}
	return v
}

// Convert prepares v for comparison against a field of kind k. It
// accepts everything Coerce does plus the conversions a SQL database
// applies to a parameter compared with a typed column:
//
//	integer field  "2" -> 2, "2.5" -> 2.5, 2.5 kept
//	float field    2 -> 2.0, "2.5" -> 2.5
//	boolean field  1/0, 1.0/0.0, "1"/"0", "true"/"false" -> Bool
//	string field   2 -> "2"
//
// Null always converts. Any other combination reports ok=false: the
// backends disagree on it, so it must be rejected. Seq elements convert
// one by one.
func Convert(v Value, k Kind) (Value, bool) {
	if seq, isSeq := v.(Seq); isSeq {
		out := make(Seq, len(seq))
		for i, elem := range seq {
			cv, ok := Convert(elem, k)
			if !ok {
				return v, false
			}
			out[i] = cv
		}
		return out, true
	}
	if v == nil || v.Kind() == KindNull || v.Kind() == k {
		return v, true
	}

	switch k {
	case KindInt:
		switch val := v.(type) {
		case Float:
			return Coerce(val, KindInt), true
		case Text:
			if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
				return Int(n), true
			}
			if f, ok := parseFinite(string(val)); ok {
				return Coerce(Float(f), KindInt), true
			}
		}
	case KindFloat:
		switch val := v.(type) {
		case Int:
			return Float(val), true
		case Text:
			if f, ok := parseFinite(string(val)); ok {
				return Float(f), true
			}
		}
	case KindBool:
		switch val := v.(type) {
		case Int:
			if val == 0 || val == 1 {
				return Bool(val == 1), true
			}
		case Float:
			if val == 0 || val == 1 {
				return Bool(val == 1), true
			}
		case Text:
			switch string(val) {
			case "1", "true":
				return Bool(true), true
			case "0", "false":
				return Bool(false), true
			}
		}
	case KindText:
		if val, isInt := v.(Int); isInt {
			return Text(val.String()), true
		}
	}
	return v, false
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
