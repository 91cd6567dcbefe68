// Package js declares the capability interfaces the WASM runtime consumes
// from the surrounding JavaScript engine. The engine supplies the concrete
// implementations; nothing in this repository redefines JS value semantics.
package js

// A Value is an opaque JavaScript value owned by the embedding engine.
type Value interface {
	IsNumber() bool
	IsBigInt() bool
	IsFunction() bool
	IsObject() bool
	IsNull() bool

	// Number returns the value coerced to a JS number. The result is only
	// meaningful for values where IsNumber reports true.
	Number() float64
	// Int64 returns the value of a BigInt truncated to 64 bits.
	Int64() int64
	// Bool returns the value coerced to a JS boolean.
	Bool() bool

	// Call invokes the value as a function. Call reports an error if the
	// value is not callable or the callee throws.
	Call(args ...Value) (Value, error)
}

// A Context constructs host values and exceptions. The runtime treats it as
// a capability: it never inspects the engine behind it.
type Context interface {
	Number(v float64) Value
	BigInt(v int64) Value
	Null() Value
	// Function wraps a Go callable as a JS function value.
	Function(fn func(args ...Value) (Value, error)) Value
	// TypeError constructs an error that the engine surfaces as a JS
	// TypeError.
	TypeError(format string, args ...interface{}) error
}
