// internal/codec/value.go
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindString
	KindBytes
	KindBits
	KindHex
)

// Value is one decoded tag value.
// The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	b    bool
	s    string // KindString, KindHex
	raw  []byte
	bits []bool
}

func Null() Value              { return Value{} }
func IntValue(v int64) Value   { return Value{kind: KindInt, i: v} }
func UintValue(v uint64) Value { return Value{kind: KindUint, u: v} }
func FloatValue(v float64) Value {
	return Value{kind: KindFloat, f: v}
}
func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BytesValue holds raw bytes read for a string tag.
func BytesValue(v []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), v...)}
}

// BitsValue holds an unindexed bit field.
func BitsValue(v []bool) Value {
	return Value{kind: KindBits, bits: append([]bool(nil), v...)}
}

// HexValue holds base-16 text that normalizes to an integer.
// No built-in decoder produces it.
func HexValue(text string) Value { return Value{kind: KindHex, s: text} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Int() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) Uint() (uint64, bool)   { return v.u, v.kind == KindUint }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) String() string         { return fmt.Sprint(v.Interface()) }
func (v Value) Bits() ([]bool, bool)   { return v.bits, v.kind == KindBits }
func (v Value) Bytes() ([]byte, bool)  { return v.raw, v.kind == KindBytes }
func (v Value) Text() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Float64 converts numeric variants to float64.
// Strings are accepted when they parse as a number.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	}
	return 0, false
}

// Interface returns the plain Go value, nil for null.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString, KindHex:
		return v.s
	case KindBytes:
		return v.raw
	case KindBits:
		return v.bits
	}
	return nil
}

// MarshalJSON writes the bare value. JSON has no NaN or Inf; those become null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

// Normalize converts decoder output into a publishable value.
func Normalize(v Value) (Value, error) {
	switch v.kind {
	case KindNull, KindInt, KindUint, KindFloat, KindBool, KindString:
		return v, nil
	case KindBytes:
		if !utf8.Valid(v.raw) {
			return Null(), fmt.Errorf("%w: string is not valid UTF-8", ErrDecode)
		}
		return StringValue(string(v.raw)), nil
	case KindBits:
		return StringValue(formatBits(v.bits)), nil
	case KindHex:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 16, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: hex %q: %v", ErrDecode, v.s, err)
		}
		return IntValue(n), nil
	}
	return Null(), fmt.Errorf("%w: unhandled kind %d", ErrDecode, v.kind)
}

func formatBits(bits []bool) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, b := range bits {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatBool(b))
	}
	sb.WriteByte(']')
	return sb.String()
}
