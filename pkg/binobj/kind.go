package binobj

import (
	"fmt"
	"math"
)

// Kind identifies a primitive wire representation.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindFloat32
	KindFloat64
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindUint8:   "u1",
	KindInt8:    "s1",
	KindUint16:  "u2",
	KindInt16:   "s2",
	KindUint32:  "u4",
	KindInt32:   "s4",
	KindUint64:  "u8",
	KindInt64:   "s8",
	KindFloat32: "f4",
	KindFloat64: "f8",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size returns the encoded width in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case KindBool, KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindUint64, KindInt64, KindFloat64:
		return 8
	}
	return 0
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

// Integer reports whether k decodes to an integer value.
func (k Kind) Integer() bool {
	switch k {
	case KindUint8, KindInt8, KindUint16, KindInt16, KindUint32, KindInt32, KindUint64, KindInt64:
		return true
	}
	return false
}

// ParseKind maps a short type name ("u4", "s2", "bool", "f8", ...) to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "u1", "byte", "uint8":
		return KindUint8, true
	case "s1", "int8":
		return KindInt8, true
	}
	for k := KindBool; k <= KindFloat64; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// Primitive is the set of Go types the codec decodes directly.
type Primitive interface {
	bool | uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64
}

// KindOf returns the Kind for T, or KindInvalid when T is not a primitive.
func KindOf[T any]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBool
	case uint8:
		return KindUint8
	case int8:
		return KindInt8
	case uint16:
		return KindUint16
	case int16:
		return KindInt16
	case uint32:
		return KindUint32
	case int32:
		return KindInt32
	case uint64:
		return KindUint64
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	return KindInvalid
}

// Value is a decoded primitive. Integers keep their raw 64-bit pattern,
// sign-extended for signed kinds.
type Value struct {
	kind Kind
	bits uint64
	f    float64
}

func boolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

func uintValue(k Kind, v uint64) Value { return Value{kind: k, bits: v} }
func intValue(k Kind, v int64) Value   { return Value{kind: k, bits: uint64(v)} }
func floatValue(k Kind, v float64) Value {
	return Value{kind: k, f: v}
}

// Kind returns the kind the value currently represents.
func (v Value) Kind() Kind { return v.kind }

func (v Value) isFloat() bool { return v.kind == KindFloat32 || v.kind == KindFloat64 }

// Int64 returns the value as a signed integer.
func (v Value) Int64() int64 {
	if v.isFloat() {
		return int64(v.f)
	}
	return int64(v.bits)
}

// Uint64 returns the value as an unsigned integer.
func (v Value) Uint64() uint64 {
	if v.isFloat() {
		return uint64(v.f)
	}
	return v.bits
}

// Float64 returns the value as a float.
func (v Value) Float64() float64 {
	switch {
	case v.isFloat():
		return v.f
	case v.kind.Signed():
		return float64(int64(v.bits))
	}
	return float64(v.bits)
}

// Bool reports whether the value is non-zero.
func (v Value) Bool() bool {
	if v.isFloat() {
		return v.f != 0
	}
	return v.bits != 0
}

// Convert re-expresses v as kind k using Go conversion rules.
func (v Value) Convert(k Kind) (Value, error) {
	switch k {
	case KindBool:
		return boolValue(v.Bool()), nil
	case KindUint8:
		return uintValue(k, uint64(uint8(v.Uint64()))), nil
	case KindUint16:
		return uintValue(k, uint64(uint16(v.Uint64()))), nil
	case KindUint32:
		return uintValue(k, uint64(uint32(v.Uint64()))), nil
	case KindUint64:
		return uintValue(k, v.Uint64()), nil
	case KindInt8:
		return intValue(k, int64(int8(v.Int64()))), nil
	case KindInt16:
		return intValue(k, int64(int16(v.Int64()))), nil
	case KindInt32:
		return intValue(k, int64(int32(v.Int64()))), nil
	case KindInt64:
		return intValue(k, v.Int64()), nil
	case KindFloat32:
		return floatValue(k, float64(float32(v.Float64()))), nil
	case KindFloat64:
		return floatValue(k, v.Float64()), nil
	}
	return Value{}, &ConfigError{Type: k.String(), Reason: "unsupported primitive kind"}
}

// Any returns the value as the Go type matching its kind.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.bits != 0
	case KindUint8:
		return uint8(v.bits)
	case KindInt8:
		return int8(v.bits)
	case KindUint16:
		return uint16(v.bits)
	case KindInt16:
		return int16(v.bits)
	case KindUint32:
		return uint32(v.bits)
	case KindInt32:
		return int32(v.bits)
	case KindUint64:
		return v.bits
	case KindInt64:
		return int64(v.bits)
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	}
	return nil
}

// Int converts v to a non-negative int within the int32 range. Floats are
// rounded half to even and bools count as 0 or 1.
func (v Value) Int() (int, error) {
	switch {
	case v.kind == KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case v.isFloat():
		f := math.RoundToEven(v.f)
		if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
			return 0, fmt.Errorf("value %v out of range", v.f)
		}
		return int(f), nil
	case v.kind.Signed():
		n := int64(v.bits)
		if n < 0 || n > math.MaxInt32 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int(n), nil
	case v.kind.Integer():
		if v.bits > math.MaxInt32 {
			return 0, fmt.Errorf("integer %d out of range", v.bits)
		}
		return int(v.bits), nil
	}
	return 0, fmt.Errorf("%s value has no integer form", v.kind)
}

// assign stores v into dst, which must point at the Go type matching v's kind.
func assign(dst any, v Value) bool {
	switch p := dst.(type) {
	case *bool:
		*p = v.Bool()
	case *uint8:
		*p = uint8(v.bits)
	case *int8:
		*p = int8(v.bits)
	case *uint16:
		*p = uint16(v.bits)
	case *int16:
		*p = int16(v.bits)
	case *uint32:
		*p = uint32(v.bits)
	case *int32:
		*p = int32(v.bits)
	case *uint64:
		*p = v.bits
	case *int64:
		*p = int64(v.bits)
	case *float32:
		*p = float32(v.f)
	case *float64:
		*p = v.f
	default:
		return false
	}
	return true
}

// valueOf wraps a primitive Go value.
func valueOf[P Primitive](p P) Value {
	switch x := any(p).(type) {
	case bool:
		return boolValue(x)
	case uint8:
		return uintValue(KindUint8, uint64(x))
	case int8:
		return intValue(KindInt8, int64(x))
	case uint16:
		return uintValue(KindUint16, uint64(x))
	case int16:
		return intValue(KindInt16, int64(x))
	case uint32:
		return uintValue(KindUint32, uint64(x))
	case int32:
		return intValue(KindInt32, int64(x))
	case uint64:
		return uintValue(KindUint64, x)
	case int64:
		return intValue(KindInt64, x)
	case float32:
		return floatValue(KindFloat32, float64(x))
	case float64:
		return floatValue(KindFloat64, x)
	}
	return Value{}
}
