package canonical

import (
	"fmt"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

// Value kinds
const (
	KindInvalid Kind = iota
	KindFloat
	KindInt
	KindString
	KindBool
)

// String returns the kind name used in diagnostics and binding files.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a typed scalar. The zero Value has KindInvalid.
type Value struct {
	kind Kind
	num  float64
	i    int64
	s    string
	b    bool
}

// FloatValue returns a float64 value.
func FloatValue(v float64) Value { return Value{kind: KindFloat, num: v} }

// IntValue returns an int64 value.
func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }

// StringValue returns a string value.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BoolValue returns a bool value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind reports the type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value holds one of the supported kinds.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Float returns the float64 held by v.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindFloat }

// Int returns the int64 held by v.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Bool returns the bool held by v.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Any returns the held value as a plain Go value, or nil for an invalid value.
func (v Value) Any() any {
	switch v.kind {
	case KindFloat:
		return v.num
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v == o
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// ValueOf converts a plain Go scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case float64:
		return FloatValue(t), nil
	case float32:
		return FloatValue(float64(t)), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint8:
		return IntValue(int64(t)), nil
	case uint16:
		return IntValue(int64(t)), nil
	case uint32:
		return IntValue(int64(t)), nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}
