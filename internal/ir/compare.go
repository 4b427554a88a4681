package ir

import (
	"cmp"
	"strings"
)

// Equal reports strict equality: same kind and same value.
// Int(1) and Float(1) are NOT equal. Seq compares element-wise.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Seq:
		bv, ok := b.(Seq)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// rank orders kinds for Compare. Int and Float share a rank.
func rank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int, Float:
		return 2
	case Text:
		return 3
	case Seq:
		return 4
	default:
		return 5
	}
}

// Compare returns -1, 0 or +1 under a total order over all values:
//
//	Null < Bool < number < Text < Seq
//
// Numbers compare numerically across Int and Float. Text compares
// byte-wise, matching SQLite's BINARY collation. Seq compares
// lexicographically.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case nil, Null:
		return 0
	case Bool:
		bv := b.(Bool)
		return cmp.Compare(boolInt(bool(av)), boolInt(bool(bv)))
	case Int:
		if bv, ok := b.(Int); ok {
			return cmp.Compare(av, bv)
		}
		bf, _ := Number(b)
		return cmp.Compare(float64(av), bf)
	case Float:
		bf, _ := Number(b)
		return cmp.Compare(float64(av), bf)
	case Text:
		return strings.Compare(string(av), string(b.(Text)))
	case Seq:
		bv := b.(Seq)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	default:
		return 0
	}
}

// Less reports whether a sorts before b.
func Less(a, b Value) bool {
	return Compare(a, b) < 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Key returns a comparable map key for v. Values that are Equal share a
// key; Seq values render through their canonical JSON.
func Key(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return Null{}
	case Seq:
		b, err := MarshalCanonical(val)
		if err != nil {
			return val.String()
		}
		return "seq:" + string(b)
	default:
		return val
	}
}
