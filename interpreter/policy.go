// Package interpreter executes WASM bytecode directly against the decoded
// module. Functions walk their raw code bodies with an explicit operand
// stack and label stack; no intermediate representation is built.
package interpreter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/strandjs/wasm/wasm/code"
)

// A Policy selects how execution responds to an opcode outside the
// implemented instruction set. A fallback handler installed with
// WithUnknownOpcodeHandler is consulted before the policy applies.
type Policy int

const (
	// PolicyStrict aborts execution with an UnsupportedOpcodeError. The
	// error is a runtime exception of the embedding, not a WASM trap.
	PolicyStrict Policy = iota
	// PolicySkip logs a diagnostic, skips the instruction and its
	// immediates, and continues. The operand stack is left untouched, so
	// subsequent type mismatches trap as usual.
	PolicySkip
	// PolicyTrap aborts execution with an unknown-opcode trap.
	PolicyTrap
)

// An UnsupportedOpcodeError reports an instruction outside the implemented
// set encountered under PolicyStrict.
type UnsupportedOpcodeError struct {
	Instr code.Instr
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("wasm: unsupported instruction %s", code.Name(e.Instr))
}

// DefaultMaxCallDepth bounds call nesting when no explicit limit is set.
const DefaultMaxCallDepth = 1024

type options struct {
	name         string
	policy       Policy
	logger       *zap.Logger
	maxCallDepth int
	fallback     func(instr code.Instr) error
}

// An Option adjusts instantiation behavior.
type Option func(*options)

// WithName sets the instance name reported by exports and errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPolicy selects the unknown-opcode policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger supplies the logger used for skip diagnostics and
// instantiation events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxCallDepth bounds the depth of nested calls before the interpreter
// traps with call stack exhaustion.
func WithMaxCallDepth(depth int) Option {
	return func(o *options) { o.maxCallDepth = depth }
}

// WithUnknownOpcodeHandler installs a handler consulted before the policy
// applies. A nil return means the instruction was handled and execution
// continues past it; an error traps.
func WithUnknownOpcodeHandler(fn func(instr code.Instr) error) Option {
	return func(o *options) { o.fallback = fn }
}

func makeOptions(opts []Option) options {
	o := options{
		name:         "main",
		policy:       PolicyStrict,
		logger:       zap.NewNop(),
		maxCallDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
