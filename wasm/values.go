package wasm

import (
	"fmt"
	"math"
)

// Value is a WASM value together with its type tag. Values are only created
// through the New* constructors; there is no useful zero Value. Accessing a
// value through the wrong accessor is a programming error and panics.
type Value struct {
	typ  ValueType
	bits uint64
	v128 [16]byte
	ref  interface{}
}

// NewI32 creates a new i32 value.
func NewI32(v int32) Value {
	return Value{typ: ValueTypeI32, bits: uint64(uint32(v))}
}

// NewI64 creates a new i64 value.
func NewI64(v int64) Value {
	return Value{typ: ValueTypeI64, bits: uint64(v)}
}

// NewF32 creates a new f32 value.
func NewF32(v float32) Value {
	return Value{typ: ValueTypeF32, bits: uint64(math.Float32bits(v))}
}

// NewF64 creates a new f64 value.
func NewF64(v float64) Value {
	return Value{typ: ValueTypeF64, bits: math.Float64bits(v)}
}

// NewV128 creates a new v128 value from its 16-byte representation.
func NewV128(v [16]byte) Value {
	return Value{typ: ValueTypeV128, v128: v}
}

// NewFuncRef creates a new funcref value. fn is an opaque function object
// owned by the runtime; a nil fn produces the null reference.
func NewFuncRef(fn interface{}) Value {
	return Value{typ: ValueTypeFuncRef, ref: fn}
}

// NewExternRef creates a new externref value. ref is an opaque host
// reference; a nil ref produces the null reference.
func NewExternRef(ref interface{}) Value {
	return Value{typ: ValueTypeExternRef, ref: ref}
}

// NullRef returns the null reference of the given reference type.
func NullRef(t ValueType) Value {
	if !t.IsReference() {
		panic(fmt.Errorf("wasm: %v is not a reference type", t))
	}
	return Value{typ: t}
}

// ZeroValue returns the zero value of the given type: 0, 0.0, all-zero bits,
// or the null reference.
func ZeroValue(t ValueType) Value {
	if !t.IsValid() {
		panic(fmt.Errorf("wasm: invalid value type %#x", uint8(t)))
	}
	return Value{typ: t}
}

// Type returns the value's type tag.
func (v Value) Type() ValueType {
	return v.typ
}

func (v Value) check(t ValueType) {
	if v.typ != t {
		panic(fmt.Errorf("wasm: %v value accessed as %v", v.typ, t))
	}
}

// I32 returns the value as an int32. I32 panics if the value is not an i32.
func (v Value) I32() int32 {
	v.check(ValueTypeI32)
	return int32(v.bits)
}

// I64 returns the value as an int64. I64 panics if the value is not an i64.
func (v Value) I64() int64 {
	v.check(ValueTypeI64)
	return int64(v.bits)
}

// F32 returns the value as a float32. F32 panics if the value is not an f32.
func (v Value) F32() float32 {
	v.check(ValueTypeF32)
	return math.Float32frombits(uint32(v.bits))
}

// F64 returns the value as a float64. F64 panics if the value is not an f64.
func (v Value) F64() float64 {
	v.check(ValueTypeF64)
	return math.Float64frombits(v.bits)
}

// V128 returns the value's 16-byte representation. V128 panics if the value
// is not a v128.
func (v Value) V128() [16]byte {
	v.check(ValueTypeV128)
	return v.v128
}

// Ref returns the opaque reference held by a funcref or externref value.
func (v Value) Ref() interface{} {
	if !v.typ.IsReference() {
		panic(fmt.Errorf("wasm: %v value accessed as a reference", v.typ))
	}
	return v.ref
}

// IsNullRef reports whether v is a null funcref or externref.
func (v Value) IsNullRef() bool {
	return v.typ.IsReference() && v.ref == nil
}

// Bits returns the raw 64-bit representation of a numeric value.
func (v Value) Bits() uint64 {
	if !v.typ.IsNumeric() {
		panic(fmt.Errorf("wasm: %v value accessed as numeric bits", v.typ))
	}
	return v.bits
}

func (v Value) String() string {
	switch v.typ {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case ValueTypeF32:
		return fmt.Sprintf("f32:%g", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("f64:%g", v.F64())
	case ValueTypeV128:
		return fmt.Sprintf("v128:%x", v.v128)
	case ValueTypeFuncRef, ValueTypeExternRef:
		if v.ref == nil {
			return v.typ.String() + ":null"
		}
		return v.typ.String()
	default:
		return "<invalid value>"
	}
}
