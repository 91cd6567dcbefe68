package interpreter

import (
	"go.uber.org/zap"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/code"
	"github.com/strandjs/wasm/wasm/leb128"
)

// A machine tracks the state shared across the frames of one invocation:
// the owning instance and the current call depth.
type machine struct {
	inst  *instance
	depth int
}

// A label marks an enterable block on the control stack.
type label struct {
	isLoop bool
	start  int // pc of the first instruction in the body
	end    int // pc of the matching end opcode
	height int // operand stack height at entry, params excluded

	// branchArity counts the values a branch carries: params for loops,
	// results otherwise. resultArity counts the values the block leaves on
	// the stack when control falls out of its end.
	branchArity int
	resultArity int
}

// A frame executes one function activation. The program counter indexes
// directly into the raw code body.
type frame struct {
	m      *machine
	fn     *function
	body   []byte
	pc     int
	opPC   int
	locals []wasm.Value
	stack  []wasm.Value
	labels []label

	instrs uint64
}

// call runs fn with the given arguments and returns its results.
func (m *machine) call(fn *function, args []wasm.Value) []wasm.Value {
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.inst.opts.maxCallDepth {
		panic(exec.TrapCallStackExhausted)
	}

	locals := make([]wasm.Value, 0, len(args)+fn.body.NumLocals())
	locals = append(locals, args...)
	for _, entry := range fn.body.Locals {
		for i := uint32(0); i < entry.Count; i++ {
			locals = append(locals, wasm.ZeroValue(entry.Type))
		}
	}

	f := frame{
		m:      m,
		fn:     fn,
		body:   fn.body.Code,
		locals: locals,
		stack:  make([]wasm.Value, 0, 16),
	}
	f.labels = append(f.labels, label{
		start:       0,
		end:         len(f.body) - 1,
		height:      0,
		branchArity: len(fn.typ.Results),
		resultArity: len(fn.typ.Results),
	})

	f.run()
	fn.addInstructions(f.instrs)

	results := make([]wasm.Value, len(fn.typ.Results))
	copy(results, f.stack[len(f.stack)-len(results):])
	return results
}

// invoke calls a function from within the interpreter loop. Host function
// errors unwind as hostError so they surface unchanged from the outermost
// Call. A bytecode function imported from another instance runs under a
// machine bound to that instance; the call depth carries across.
func (m *machine) invoke(target exec.Function, args []wasm.Value) []wasm.Value {
	if fn, ok := target.(*function); ok {
		if fn.inst == m.inst {
			return m.call(fn, args)
		}
		callee := machine{inst: fn.inst, depth: m.depth}
		return callee.call(fn, args)
	}
	results, err := target.Call(args...)
	if err != nil {
		if trap, ok := err.(exec.Trap); ok {
			panic(trap)
		}
		panic(hostError{err: err})
	}
	return results
}

// Operand stack accessors. Underflow and operand type mismatches are
// execution traps, not errors: the stack discipline is the bytecode's
// contract.

func (f *frame) push(v wasm.Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() wasm.Value {
	if len(f.stack) == 0 {
		panic(exec.TrapStackUnderflow)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) popTyped(t wasm.ValueType) wasm.Value {
	v := f.pop()
	if v.Type() != t {
		panic(exec.TrapOperandTypeMismatch)
	}
	return v
}

func (f *frame) popI32() int32 {
	return f.popTyped(wasm.ValueTypeI32).I32()
}

func (f *frame) popI64() int64 {
	return f.popTyped(wasm.ValueTypeI64).I64()
}

func (f *frame) popF32() float32 {
	return f.popTyped(wasm.ValueTypeF32).F32()
}

func (f *frame) popF64() float64 {
	return f.popTyped(wasm.ValueTypeF64).F64()
}

func (f *frame) popV128() [16]byte {
	return f.popTyped(wasm.ValueTypeV128).V128()
}

func (f *frame) pushI32(v int32)     { f.push(wasm.NewI32(v)) }
func (f *frame) pushI64(v int64)     { f.push(wasm.NewI64(v)) }
func (f *frame) pushF32(v float32)   { f.push(wasm.NewF32(v)) }
func (f *frame) pushF64(v float64)   { f.push(wasm.NewF64(v)) }
func (f *frame) pushV128(v [16]byte) { f.push(wasm.NewV128(v)) }

func (f *frame) pushBool(b bool) {
	if b {
		f.pushI32(1)
	} else {
		f.pushI32(0)
	}
}

// Immediate readers. Malformed immediates trap: decoding validated the
// section framing but not every operand byte.

func (f *frame) readVaruint32() uint32 {
	v, n, err := leb128.GetVarUint32(f.body[f.pc:])
	if err != nil {
		panic(exec.TrapUnknownOpcode)
	}
	f.pc += n
	return v
}

func (f *frame) readVarint32() int32 {
	v, n, err := leb128.GetVarint32(f.body[f.pc:])
	if err != nil {
		panic(exec.TrapUnknownOpcode)
	}
	f.pc += n
	return v
}

func (f *frame) readVarint64() int64 {
	v, n, err := leb128.GetVarint64(f.body[f.pc:])
	if err != nil {
		panic(exec.TrapUnknownOpcode)
	}
	f.pc += n
	return v
}

func (f *frame) readByte() byte {
	if f.pc >= len(f.body) {
		panic(exec.TrapUnknownOpcode)
	}
	b := f.body[f.pc]
	f.pc++
	return b
}

// readMemarg consumes an alignment hint and offset and returns the offset.
func (f *frame) readMemarg() uint32 {
	f.readVaruint32()
	return f.readVaruint32()
}

// blockType reads a block type immediate and returns the block's parameter
// and result counts along with the parameter types.
func (f *frame) blockType() (params []wasm.ValueType, results int) {
	v, n, err := leb128.GetVarint33(f.body[f.pc:])
	if err != nil {
		panic(exec.TrapUnknownOpcode)
	}
	f.pc += n

	if v < 0 {
		switch byte(v & 0x7f) {
		case 0x40:
			return nil, 0
		default:
			return nil, 1
		}
	}
	if v >= int64(len(f.m.inst.module.Types)) {
		panic(exec.TrapUnknownOpcode)
	}
	t := f.m.inst.module.Types[v]
	return t.Params, len(t.Results)
}

// findBlockEnd scans forward from the body of a block at pc and returns the
// pc of its matching end, plus the pc of a same-depth else for if blocks.
func (f *frame) findBlockEnd(pc int) (endPC, elsePC int) {
	elsePC = -1
	depth := 0
	for {
		instr, next, err := code.Next(f.body, pc)
		if err != nil {
			panic(exec.TrapUnknownOpcode)
		}
		switch instr.Op {
		case code.OpBlock, code.OpLoop, code.OpIf:
			depth++
		case code.OpElse:
			if depth == 0 {
				elsePC = pc
			}
		case code.OpEnd:
			if depth == 0 {
				return pc, elsePC
			}
			depth--
		}
		pc = next
	}
}

// enterBlock pushes a label for a block whose body begins at the current
// pc. Block parameters stay on the operand stack.
func (f *frame) enterBlock(isLoop bool, params []wasm.ValueType, results int, endPC int) {
	branchArity := results
	if isLoop {
		branchArity = len(params)
	}
	f.labels = append(f.labels, label{
		isLoop:      isLoop,
		start:       f.pc,
		end:         endPC,
		height:      len(f.stack) - len(params),
		branchArity: branchArity,
		resultArity: results,
	})
}

// branch transfers control to the label depth levels up the control stack.
// The operand stack is trimmed to the label's entry height plus the values
// the branch carries.
func (f *frame) branch(depth int) {
	if depth >= len(f.labels) {
		panic(exec.TrapStackUnderflow)
	}
	idx := len(f.labels) - 1 - depth
	l := f.labels[idx]

	if len(f.stack) < l.height+l.branchArity {
		panic(exec.TrapStackUnderflow)
	}
	carried := f.stack[len(f.stack)-l.branchArity:]
	f.stack = append(f.stack[:l.height], carried...)

	// The target label stays on the control stack: a loop branch re-enters
	// its body and a block branch lands on the end opcode, which pops it.
	f.labels = f.labels[:idx+1]
	if l.isLoop {
		f.pc = l.start
	} else {
		f.pc = l.end
	}
}

// run executes the frame's body to completion.
func (f *frame) run() {
	for {
		f.opPC = f.pc
		op := f.readByte()
		f.instrs++

		switch op {
		case code.OpUnreachable:
			panic(exec.TrapUnreachable)

		case code.OpNop:

		case code.OpBlock:
			params, results := f.blockType()
			endPC, _ := f.findBlockEnd(f.pc)
			f.enterBlock(false, params, results, endPC)

		case code.OpLoop:
			params, results := f.blockType()
			endPC, _ := f.findBlockEnd(f.pc)
			f.enterBlock(true, params, results, endPC)

		case code.OpIf:
			params, results := f.blockType()
			endPC, elsePC := f.findBlockEnd(f.pc)
			cond := f.popI32()
			switch {
			case cond != 0:
				f.enterBlock(false, params, results, endPC)
			case elsePC >= 0:
				f.enterBlock(false, params, results, endPC)
				f.pc = elsePC + 1
			default:
				f.pc = endPC + 1
			}

		case code.OpElse:
			// Reached only by falling out of a then branch.
			l := f.labels[len(f.labels)-1]
			f.pc = l.end

		case code.OpEnd:
			l := f.labels[len(f.labels)-1]
			f.labels = f.labels[:len(f.labels)-1]
			if len(f.stack) < l.height+l.resultArity {
				panic(exec.TrapStackUnderflow)
			}
			carried := f.stack[len(f.stack)-l.resultArity:]
			f.stack = append(f.stack[:l.height], carried...)
			if len(f.labels) == 0 {
				return
			}

		case code.OpBr:
			f.branch(int(f.readVaruint32()))

		case code.OpBrIf:
			depth := int(f.readVaruint32())
			if f.popI32() != 0 {
				f.branch(depth)
			}

		case code.OpBrTable:
			count := f.readVaruint32()
			depths := make([]uint32, count+1)
			for i := range depths {
				depths[i] = f.readVaruint32()
			}
			idx := uint32(f.popI32())
			if idx >= count {
				idx = count
			}
			f.branch(int(depths[idx]))

		case code.OpReturn:
			f.branch(len(f.labels) - 1)

		case code.OpCall:
			f.call(f.m.inst.function(f.readVaruint32()))

		case code.OpCallIndirect:
			f.callIndirect(f.readVaruint32(), f.readVaruint32())

		case code.OpDrop:
			f.pop()

		case code.OpSelect:
			f.doSelect()

		case code.OpSelectT:
			count := f.readVaruint32()
			for i := uint32(0); i < count; i++ {
				f.readByte()
			}
			f.doSelect()

		case code.OpLocalGet:
			f.push(f.local(f.readVaruint32()))

		case code.OpLocalSet:
			idx := f.readVaruint32()
			f.setLocal(idx, f.pop())

		case code.OpLocalTee:
			idx := f.readVaruint32()
			f.setLocal(idx, f.stack[len(f.stack)-1])

		case code.OpGlobalGet:
			f.push(f.m.inst.global(f.readVaruint32()).Get())

		case code.OpGlobalSet:
			g := f.m.inst.global(f.readVaruint32())
			if err := g.Set(f.pop()); err != nil {
				panic(exec.TrapOperandTypeMismatch)
			}

		case code.OpTableGet:
			t := f.m.inst.table(f.readVaruint32())
			i := uint32(f.popI32())
			if i >= t.Size() {
				panic(exec.TrapOutOfBoundsTableAccess)
			}
			f.push(t.Get(i))

		case code.OpTableSet:
			t := f.m.inst.table(f.readVaruint32())
			v := f.pop()
			i := uint32(f.popI32())
			if err := t.Set(i, v); err != nil {
				panic(exec.TrapOutOfBoundsTableAccess)
			}

		case code.OpRefNull:
			t := wasm.ValueType(f.readByte())
			if !t.IsReference() {
				panic(exec.TrapUnknownOpcode)
			}
			f.push(wasm.NullRef(t))

		case code.OpRefIsNull:
			v := f.pop()
			if !v.Type().IsReference() {
				panic(exec.TrapOperandTypeMismatch)
			}
			f.pushBool(v.IsNullRef())

		case code.OpRefFunc:
			f.push(wasm.NewFuncRef(f.m.inst.function(f.readVaruint32())))

		case code.OpPrefix:
			f.execPrefix(f.readVaruint32())

		case code.OpVectorPrefix:
			f.execVector(f.readVaruint32())

		case code.OpAtomicPrefix:
			f.execAtomic(f.readVaruint32())

		default:
			if !f.execNumeric(op) && !f.execMemory(op) {
				f.unknown(code.Instr{Op: op})
			}
		}
	}
}

func (f *frame) local(idx uint32) wasm.Value {
	if idx >= uint32(len(f.locals)) {
		panic(exec.TrapUnknownOpcode)
	}
	return f.locals[idx]
}

func (f *frame) setLocal(idx uint32, v wasm.Value) {
	if idx >= uint32(len(f.locals)) {
		panic(exec.TrapUnknownOpcode)
	}
	if v.Type() != f.locals[idx].Type() {
		panic(exec.TrapOperandTypeMismatch)
	}
	f.locals[idx] = v
}

func (f *frame) doSelect() {
	cond := f.popI32()
	b := f.pop()
	a := f.pop()
	if cond != 0 {
		f.push(a)
	} else {
		f.push(b)
	}
}

// call pops the callee's arguments, invokes it, and pushes its results.
func (f *frame) call(target exec.Function) {
	type_ := target.Type()
	n := len(type_.Params)
	if len(f.stack) < n {
		panic(exec.TrapStackUnderflow)
	}
	args := make([]wasm.Value, n)
	copy(args, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	for i, arg := range args {
		if arg.Type() != type_.Params[i] {
			panic(exec.TrapOperandTypeMismatch)
		}
	}

	results := f.m.invoke(target, args)
	f.stack = append(f.stack, results...)
}

func (f *frame) callIndirect(typeIdx, tableIdx uint32) {
	t := f.m.inst.table(tableIdx)
	i := uint32(f.popI32())
	if i >= t.Size() {
		panic(exec.TrapUndefinedElement)
	}
	elem := t.Get(i)
	if elem.IsNullRef() {
		panic(exec.TrapUninitializedElement)
	}
	target, ok := elem.Ref().(exec.Function)
	if !ok {
		panic(exec.TrapUninitializedElement)
	}

	if typeIdx >= uint32(len(f.m.inst.module.Types)) {
		panic(exec.TrapIndirectCallTypeMismatch)
	}
	if !target.Type().Equals(f.m.inst.module.Types[typeIdx]) {
		panic(exec.TrapIndirectCallTypeMismatch)
	}
	f.call(target)
}

// unknown applies the fallback handler and unknown-opcode policy to the
// instruction that begins at f.opPC.
func (f *frame) unknown(instr code.Instr) {
	_, next, err := code.Next(f.body, f.opPC)
	if err != nil {
		panic(exec.TrapUnknownOpcode)
	}

	opts := &f.m.inst.opts
	if opts.fallback != nil {
		if err := opts.fallback(instr); err == nil {
			f.pc = next
			return
		}
		panic(exec.TrapUnknownOpcode)
	}

	switch opts.policy {
	case PolicySkip:
		opts.logger.Warn("skipping unsupported instruction",
			zap.String("opcode", code.Name(instr)),
			zap.Uint32("function", f.fn.index),
			zap.Int("pc", f.opPC))
		f.pc = next
	case PolicyTrap:
		panic(exec.TrapUnknownOpcode)
	default:
		panic(hostError{err: &UnsupportedOpcodeError{Instr: instr}})
	}
}
