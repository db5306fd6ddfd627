package vars

import (
	"strconv"
	"strings"
)

// Kind tags the four value types a macro variable can hold.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Value is a tagged sum over int64, float64, bool and string. The zero
// Value is the integer 0, which is also the default for unset variables.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	B    bool
	S    string
}

func IntVal(v int64) Value     { return Value{Kind: KindInt, I: v} }
func FloatVal(v float64) Value { return Value{Kind: KindFloat, F: v} }
func BoolVal(v bool) Value     { return Value{Kind: KindBool, B: v} }
func StrVal(v string) Value    { return Value{Kind: KindString, S: v} }

// Coerce converts a literal token to the most specific applicable type,
// tried in order: int, float, bool (case-insensitive true/false), string.
func Coerce(tok string) Value {
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return IntVal(i)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return FloatVal(f)
	}
	switch strings.ToLower(tok) {
	case "true":
		return BoolVal(true)
	case "false":
		return BoolVal(false)
	}
	return StrVal(tok)
}

// Truthy reports the boolean view of the value: non-zero numbers, true
// booleans and non-empty strings are true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindBool:
		return v.B
	default:
		return v.S != ""
	}
}

// Number returns the numeric view of the value. Booleans count as 0/1,
// matching the arithmetic the expression evaluator performs on them.
// ok is false for strings.
func (v Value) Number() (f float64, ok bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	case KindBool:
		if v.B {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsInt converts the value to an integer where a sensible conversion
// exists (floats truncate, numeric strings parse). ok is false otherwise.
func (v Value) AsInt() (n int64, ok bool) {
	switch v.Kind {
	case KindInt:
		return v.I, true
	case KindFloat:
		return int64(v.F), true
	case KindBool:
		if v.B {
			return 1, true
		}
		return 0, true
	default:
		i, err := strconv.ParseInt(strings.TrimSpace(v.S), 10, 64)
		return i, err == nil
	}
}

// String renders the value the way command arguments and log lines show it.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.B)
	default:
		return v.S
	}
}
