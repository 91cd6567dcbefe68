package exec

import (
	"runtime"
	"strings"
)

// A Trap represents a WASM trap: a fatal runtime condition that aborts the
// current call. Traps propagate as panics inside the interpreter and are
// recovered into errors at the call boundary.
type Trap string

func (t Trap) Error() string {
	return string(t)
}

// TrapUnreachable indicates execution of unreachable code.
var TrapUnreachable = Trap("unreachable")

// TrapUndefinedElement indicates an attempt to access a table with an index
// that is out of bounds.
var TrapUndefinedElement = Trap("undefined element")

// TrapUninitializedElement indicates an attempt to call through an
// uninitialized table element.
var TrapUninitializedElement = Trap("uninitialized element")

// TrapIndirectCallTypeMismatch indicates a mismatch between the expected and
// actual type of an indirectly-called function.
var TrapIndirectCallTypeMismatch = Trap("indirect call type mismatch")

// TrapOutOfBoundsMemoryAccess indicates an out-of-bounds linear memory
// access.
var TrapOutOfBoundsMemoryAccess = Trap("out of bounds memory access")

// TrapOutOfBoundsTableAccess indicates an out-of-bounds table access.
var TrapOutOfBoundsTableAccess = Trap("out of bounds table access")

// TrapIntegerOverflow indicates an integer overflow.
var TrapIntegerOverflow = Trap("integer overflow")

// TrapIntegerDivideByZero indicates an attempt to divide by zero.
var TrapIntegerDivideByZero = Trap("integer divide by zero")

// TrapInvalidConversionToInteger indicates a conversion of a NaN to an
// integer.
var TrapInvalidConversionToInteger = Trap("invalid conversion to integer")

// TrapCallStackExhausted indicates call stack exhaustion.
var TrapCallStackExhausted = Trap("call stack exhausted")

// TrapStackUnderflow indicates that an instruction required more operands
// than the stack held. A validated module never produces this.
var TrapStackUnderflow = Trap("operand stack underflow")

// TrapOperandTypeMismatch indicates that an operand's type tag did not match
// the type an instruction required. A validated module never produces this.
var TrapOperandTypeMismatch = Trap("operand type mismatch")

// TrapNullReference indicates use of a null funcref or externref where a
// non-null reference is required.
var TrapNullReference = Trap("null reference")

// TrapUnknownOpcode indicates that an instruction byte had no handler under
// the trap opcode policy.
var TrapUnknownOpcode = Trap("unknown opcode")

// TrapExpectedSharedMemory indicates an atomic wait on unshared memory.
var TrapExpectedSharedMemory = Trap("expected shared memory")

// TrapUnalignedAtomicAccess indicates an atomic access whose address is not
// naturally aligned for its width.
var TrapUnalignedAtomicAccess = Trap("unaligned atomic access")

// TranslateRuntimeError translates Go runtime errors into WASM traps.
func TranslateRuntimeError(err runtime.Error) (Trap, bool) {
	switch {
	case err == nil:
		return "", false
	case strings.HasPrefix(err.Error(), "runtime error: index out of range"):
		return TrapOutOfBoundsMemoryAccess, true
	case strings.HasPrefix(err.Error(), "runtime error: slice bounds out of range"):
		return TrapOutOfBoundsMemoryAccess, true
	case strings.HasPrefix(err.Error(), "runtime error: integer divide by zero"):
		return TrapIntegerDivideByZero, true
	default:
		return "", false
	}
}
