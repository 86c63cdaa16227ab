package hla

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
)

// Encoding names an HLA basic data representation.
type Encoding string

// Supported encodings
const (
	Float64BE     Encoding = "HLAfloat64BE"
	Float32BE     Encoding = "HLAfloat32BE"
	Integer64BE   Encoding = "HLAinteger64BE"
	Integer32BE   Encoding = "HLAinteger32BE"
	Boolean       Encoding = "HLAboolean"
	UnicodeString Encoding = "HLAunicodeString"
	ASCIIString   Encoding = "HLAASCIIstring"
)

// Encodings lists every supported encoding.
var Encodings = []Encoding{
	Float64BE, Float32BE, Integer64BE, Integer32BE, Boolean, UnicodeString, ASCIIString,
}

// ParseEncoding validates an encoding name.
func ParseEncoding(name string) (Encoding, error) {
	for _, e := range Encodings {
		if string(e) == name {
			return e, nil
		}
	}
	return "", errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrUnknownEncoding, name), "hla", "ParseEncoding", "lookup encoding")
}

// Accepts reports whether values of kind k can be encoded with e.
// Float encodings widen integers; the other encodings require an exact kind.
func (e Encoding) Accepts(k canonical.Kind) bool {
	switch e {
	case Float64BE, Float32BE:
		return k == canonical.KindFloat || k == canonical.KindInt
	case Integer64BE, Integer32BE:
		return k == canonical.KindInt
	case Boolean:
		return k == canonical.KindBool
	case UnicodeString, ASCIIString:
		return k == canonical.KindString
	default:
		return false
	}
}

// Encode renders v in the representation named by e.
func Encode(e Encoding, v canonical.Value) ([]byte, error) {
	if !e.Accepts(v.Kind()) {
		return nil, mismatch("Encode", e, v.Kind())
	}

	switch e {
	case Float64BE:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(asFloat(v))), nil

	case Float32BE:
		f := asFloat(v)
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %g overflows %s", errors.ErrTypeMismatch, f, e), "hla", "Encode", "range check")
		}
		return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(f))), nil

	case Integer64BE:
		i, _ := v.Int()
		return binary.BigEndian.AppendUint64(nil, uint64(i)), nil

	case Integer32BE:
		i, _ := v.Int()
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %d overflows %s", errors.ErrTypeMismatch, i, e), "hla", "Encode", "range check")
		}
		return binary.BigEndian.AppendUint32(nil, uint32(int32(i))), nil

	case Boolean:
		b, _ := v.Bool()
		var n uint32
		if b {
			n = 1
		}
		return binary.BigEndian.AppendUint32(nil, n), nil

	case UnicodeString:
		s, _ := v.Str()
		units := utf16.Encode([]rune(s))
		out := binary.BigEndian.AppendUint32(make([]byte, 0, 4+2*len(units)), uint32(len(units)))
		for _, u := range units {
			out = binary.BigEndian.AppendUint16(out, u)
		}
		return out, nil

	case ASCIIString:
		s, _ := v.Str()
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: non-ASCII byte at offset %d", errors.ErrTypeMismatch, i),
					"hla", "Encode", "validate ASCII")
			}
		}
		out := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(s)), uint32(len(s)))
		return append(out, s...), nil
	}

	return nil, mismatch("Encode", e, v.Kind())
}

// Decode parses data encoded with e.
func Decode(e Encoding, data []byte) (canonical.Value, error) {
	switch e {
	case Float64BE:
		if err := need(e, data, 8); err != nil {
			return canonical.Value{}, err
		}
		return canonical.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(data))), nil

	case Float32BE:
		if err := need(e, data, 4); err != nil {
			return canonical.Value{}, err
		}
		return canonical.FloatValue(float64(math.Float32frombits(binary.BigEndian.Uint32(data)))), nil

	case Integer64BE:
		if err := need(e, data, 8); err != nil {
			return canonical.Value{}, err
		}
		return canonical.IntValue(int64(binary.BigEndian.Uint64(data))), nil

	case Integer32BE:
		if err := need(e, data, 4); err != nil {
			return canonical.Value{}, err
		}
		return canonical.IntValue(int64(int32(binary.BigEndian.Uint32(data)))), nil

	case Boolean:
		if err := need(e, data, 4); err != nil {
			return canonical.Value{}, err
		}
		return canonical.BoolValue(binary.BigEndian.Uint32(data) != 0), nil

	case UnicodeString:
		if err := atLeast(e, data, 4); err != nil {
			return canonical.Value{}, err
		}
		n := int(binary.BigEndian.Uint32(data))
		if err := need(e, data[4:], 2*n); err != nil {
			return canonical.Value{}, err
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(data[4+2*i:])
		}
		return canonical.StringValue(string(utf16.Decode(units))), nil

	case ASCIIString:
		if err := atLeast(e, data, 4); err != nil {
			return canonical.Value{}, err
		}
		n := int(binary.BigEndian.Uint32(data))
		if err := need(e, data[4:], n); err != nil {
			return canonical.Value{}, err
		}
		return canonical.StringValue(string(data[4 : 4+n])), nil
	}

	return canonical.Value{}, errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrUnknownEncoding, string(e)), "hla", "Decode", "lookup encoding")
}

func asFloat(v canonical.Value) float64 {
	if f, ok := v.Float(); ok {
		return f
	}
	i, _ := v.Int()
	return float64(i)
}

func mismatch(op string, e Encoding, k canonical.Kind) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s cannot encode %s", errors.ErrTypeMismatch, e, k), "hla", op, "type check")
}

func need(e Encoding, data []byte, n int) error {
	if len(data) != n {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s needs %d bytes, got %d", errors.ErrMalformedPayload, e, n, len(data)),
			"hla", "Decode", "length check")
	}
	return nil
}

func atLeast(e Encoding, data []byte, n int) error {
	if len(data) < n {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s needs at least %d bytes, got %d", errors.ErrMalformedPayload, e, n, len(data)),
			"hla", "Decode", "length check")
	}
	return nil
}
