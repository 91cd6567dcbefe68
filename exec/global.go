package exec

import (
	"fmt"
	"sync"

	"github.com/strandjs/wasm/wasm"
)

// ErrImmutableGlobal is returned by Set on an immutable global. Mutating an
// immutable global is a contract violation by the caller, not an expected
// runtime condition.
var ErrImmutableGlobal = fmt.Errorf("wasm: global is immutable")

// A GlobalTypeError is returned when a value of the wrong type is stored
// into a global.
type GlobalTypeError struct {
	Expected wasm.ValueType
	Actual   wasm.ValueType
}

func (e *GlobalTypeError) Error() string {
	return fmt.Sprintf("wasm: cannot store %v value in %v global", e.Actual, e.Expected)
}

// A Global is a WASM global variable. All operations are serialized under a
// single mutex; the atomic read-modify-write operations share that mutex
// with plain Get and Set rather than taking a lock-free fast path.
type Global struct {
	mu      sync.Mutex
	typ     wasm.GlobalType
	value   wasm.Value
	initial wasm.Value
}

// NewGlobal creates a new global of the given type holding init. NewGlobal
// panics if init's type does not match: construction with a mismatched
// initial value is a programming error.
func NewGlobal(type_ wasm.GlobalType, init wasm.Value) *Global {
	if init.Type() != type_.Type {
		panic(&GlobalTypeError{Expected: type_.Type, Actual: init.Type()})
	}
	return &Global{typ: type_, value: init, initial: init}
}

// Type returns the global's type and mutability.
func (g *Global) Type() wasm.GlobalType {
	return g.typ
}

// Get returns the global's current value.
func (g *Global) Get() wasm.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Set stores v into the global. It fails if the global is immutable or v's
// type does not match the global's type.
func (g *Global) Set(v wasm.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.typ.Mutable {
		return ErrImmutableGlobal
	}
	if v.Type() != g.typ.Type {
		return &GlobalTypeError{Expected: g.typ.Type, Actual: v.Type()}
	}
	g.value = v
	return nil
}

// Reset restores the global's initial value. The owning instance may reset
// immutable globals at reinstantiation time; Reset therefore bypasses the
// mutability check.
func (g *Global) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = g.initial
}

// CompareExchange atomically replaces the global's value with desired if it
// currently equals expected, returning the value observed and whether the
// exchange happened. It is defined for the numeric types only; on reference
// types it reports false without mutating.
func (g *Global) CompareExchange(expected, desired wasm.Value) (wasm.Value, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.typ.Type.IsNumeric() || expected.Type() != g.typ.Type || desired.Type() != g.typ.Type {
		return g.value, false
	}
	if g.value.Bits() != expected.Bits() {
		return g.value, false
	}
	old := g.value
	g.value = desired
	return old, true
}

// Exchange atomically replaces the global's value, returning the previous
// value. On reference types it reports false without mutating.
func (g *Global) Exchange(v wasm.Value) (wasm.Value, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.typ.Type.IsNumeric() || v.Type() != g.typ.Type {
		return g.value, false
	}
	old := g.value
	g.value = v
	return old, true
}

// FetchAdd atomically adds v to the global, returning the previous value.
// On reference types it reports false without mutating.
func (g *Global) FetchAdd(v wasm.Value) (wasm.Value, bool) {
	return g.fetchOp(v, false)
}

// FetchSub atomically subtracts v from the global, returning the previous
// value. On reference types it reports false without mutating.
func (g *Global) FetchSub(v wasm.Value) (wasm.Value, bool) {
	return g.fetchOp(v, true)
}

func (g *Global) fetchOp(v wasm.Value, sub bool) (wasm.Value, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.typ.Type.IsNumeric() || v.Type() != g.typ.Type {
		return g.value, false
	}
	old := g.value
	switch g.typ.Type {
	case wasm.ValueTypeI32:
		if sub {
			g.value = wasm.NewI32(old.I32() - v.I32())
		} else {
			g.value = wasm.NewI32(old.I32() + v.I32())
		}
	case wasm.ValueTypeI64:
		if sub {
			g.value = wasm.NewI64(old.I64() - v.I64())
		} else {
			g.value = wasm.NewI64(old.I64() + v.I64())
		}
	case wasm.ValueTypeF32:
		if sub {
			g.value = wasm.NewF32(old.F32() - v.F32())
		} else {
			g.value = wasm.NewF32(old.F32() + v.F32())
		}
	case wasm.ValueTypeF64:
		if sub {
			g.value = wasm.NewF64(old.F64() - v.F64())
		} else {
			g.value = wasm.NewF64(old.F64() + v.F64())
		}
	}
	return old, true
}
