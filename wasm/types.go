package wasm

import (
	"fmt"
	"strings"
)

// ValueType represents a WASM value type.
type ValueType uint8

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncRef   ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6f
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncRef:
		return "funcref"
	case ValueTypeExternRef:
		return "externref"
	default:
		return fmt.Sprintf("<unknown value type %#x>", uint8(t))
	}
}

// IsValid reports whether t is one of the legal WASM value types.
func (t ValueType) IsValid() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128, ValueTypeFuncRef, ValueTypeExternRef:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether t is one of the four numeric value types.
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	default:
		return false
	}
}

// IsReference reports whether t is a reference type.
func (t ValueType) IsReference() bool {
	return t == ValueTypeFuncRef || t == ValueTypeExternRef
}

// TypeForm is the single form tag for function types in the binary format.
const TypeForm uint8 = 0x60

// FunctionType describes the parameters and results of a function.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equals returns true if the given function type is structurally equal to
// this one.
func (t FunctionType) Equals(other FunctionType) bool {
	if len(t.Params) != len(other.Params) || len(t.Results) != len(other.Results) {
		return false
	}
	for i, p := range t.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range t.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

func (t FunctionType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	results := make([]string, len(t.Results))
	for i, r := range t.Results {
		results[i] = r.String()
	}
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(params, ", "), strings.Join(results, ", "))
}

// Limits describes the minimum and optional maximum size of a table or
// memory.
type Limits struct {
	HasMax bool
	Min    uint32
	Max    uint32
}

func (l Limits) String() string {
	if l.HasMax {
		return fmt.Sprintf("[%d, %d]", l.Min, l.Max)
	}
	return fmt.Sprintf("[%d, inf)", l.Min)
}

// TableType describes the element type and limits of a table.
type TableType struct {
	ElemType ValueType
	Limits   Limits
}

// MemoryType describes the limits of a linear memory, in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes the value type and mutability of a global.
type GlobalType struct {
	Type    ValueType
	Mutable bool
}

// External classifies imports and exports.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return fmt.Sprintf("<unknown external kind %d>", uint8(e))
	}
}
