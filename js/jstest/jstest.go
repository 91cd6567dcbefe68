// Package jstest provides a minimal in-process implementation of the js
// boundary for tests. It models only as much of JS value semantics as the
// runtime's conversions exercise.
package jstest

import (
	"fmt"

	"github.com/strandjs/wasm/js"
)

// Context implements js.Context.
type Context struct{}

// NewContext creates a test context.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) Number(v float64) js.Value {
	return Number(v)
}

func (c *Context) BigInt(v int64) js.Value {
	return BigInt(v)
}

func (c *Context) Null() js.Value {
	return Null{}
}

func (c *Context) Function(fn func(args ...js.Value) (js.Value, error)) js.Value {
	return Function(fn)
}

func (c *Context) TypeError(format string, args ...interface{}) error {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}

// TypeError is the test stand-in for a JS TypeError.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string {
	return "TypeError: " + e.Message
}

type valueBase struct{}

func (valueBase) IsNumber() bool   { return false }
func (valueBase) IsBigInt() bool   { return false }
func (valueBase) IsFunction() bool { return false }
func (valueBase) IsObject() bool   { return false }
func (valueBase) IsNull() bool     { return false }
func (valueBase) Number() float64  { return 0 }
func (valueBase) Int64() int64     { return 0 }
func (valueBase) Bool() bool       { return false }

func (valueBase) Call(args ...js.Value) (js.Value, error) {
	return nil, fmt.Errorf("jstest: value is not callable")
}

// Number is a JS number.
type Number float64

func (Number) IsNumber() bool    { return true }
func (Number) IsBigInt() bool    { return false }
func (Number) IsFunction() bool  { return false }
func (Number) IsObject() bool    { return false }
func (Number) IsNull() bool      { return false }
func (n Number) Number() float64 { return float64(n) }
func (n Number) Int64() int64    { return int64(n) }
func (n Number) Bool() bool      { return n != 0 }

func (Number) Call(args ...js.Value) (js.Value, error) {
	return nil, fmt.Errorf("jstest: number is not callable")
}

// BigInt is a JS BigInt, truncated to 64 bits.
type BigInt int64

func (BigInt) IsNumber() bool    { return false }
func (BigInt) IsBigInt() bool    { return true }
func (BigInt) IsFunction() bool  { return false }
func (BigInt) IsObject() bool    { return false }
func (BigInt) IsNull() bool      { return false }
func (b BigInt) Number() float64 { return float64(b) }
func (b BigInt) Int64() int64    { return int64(b) }
func (b BigInt) Bool() bool      { return b != 0 }

func (BigInt) Call(args ...js.Value) (js.Value, error) {
	return nil, fmt.Errorf("jstest: bigint is not callable")
}

// Bool is a JS boolean.
type Bool bool

func (Bool) IsNumber() bool   { return false }
func (Bool) IsBigInt() bool   { return false }
func (Bool) IsFunction() bool { return false }
func (Bool) IsObject() bool   { return false }
func (Bool) IsNull() bool     { return false }
func (b Bool) Number() float64 {
	if b {
		return 1
	}
	return 0
}
func (b Bool) Int64() int64 {
	if b {
		return 1
	}
	return 0
}
func (b Bool) Bool() bool { return bool(b) }

func (Bool) Call(args ...js.Value) (js.Value, error) {
	return nil, fmt.Errorf("jstest: boolean is not callable")
}

// Null is the JS null value.
type Null struct {
	valueBase
}

func (Null) IsNull() bool { return true }

// Object is an opaque JS object.
type Object struct {
	valueBase
	Tag string
}

func (Object) IsObject() bool { return true }

// Function is a callable JS value backed by a Go function.
type Function func(args ...js.Value) (js.Value, error)

func (Function) IsNumber() bool   { return false }
func (Function) IsBigInt() bool   { return false }
func (Function) IsFunction() bool { return true }
func (Function) IsObject() bool   { return true }
func (Function) IsNull() bool     { return false }
func (Function) Number() float64  { return 0 }
func (Function) Int64() int64     { return 0 }
func (Function) Bool() bool       { return true }

func (f Function) Call(args ...js.Value) (js.Value, error) {
	return f(args...)
}
