package exec

import (
	"github.com/strandjs/wasm/wasm"
)

// Function represents a callable WASM function: a bytecode function produced
// by instantiation or a host function wrapped by an adapter.
type Function interface {
	// Type returns this function's type.
	Type() wasm.FunctionType
	// Call calls the function with the given arguments. Traps and host
	// errors are returned, never panicked.
	Call(args ...wasm.Value) ([]wasm.Value, error)
}
