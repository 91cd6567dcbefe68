package code

import (
	"fmt"

	"github.com/strandjs/wasm/wasm/leb128"
)

// An UnknownOpcodeError reports an opcode the scanner has no immediate
// shape for.
type UnknownOpcodeError struct {
	Opcode Instr
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("wasm: unknown opcode %v", e.Opcode)
}

// An Instr identifies an instruction: its leading byte and, for the 0xfc,
// 0xfd, and 0xfe prefixes, the sub-opcode that follows it.
type Instr struct {
	Op  byte
	Sub uint32
}

func (i Instr) String() string {
	switch i.Op {
	case OpPrefix, OpVectorPrefix, OpAtomicPrefix:
		return fmt.Sprintf("%#02x:%d", i.Op, i.Sub)
	default:
		return fmt.Sprintf("%#02x", i.Op)
	}
}

// Next decodes the instruction at pc and returns it along with the pc of
// the following instruction. Immediates are skipped, not interpreted.
func Next(body []byte, pc int) (Instr, int, error) {
	if pc >= len(body) {
		return Instr{}, 0, leb128.ErrTruncated
	}
	op := body[pc]
	pc++

	switch op {
	case OpPrefix, OpVectorPrefix, OpAtomicPrefix:
		sub, n, err := leb128.GetVarUint32(body[pc:])
		if err != nil {
			return Instr{}, 0, err
		}
		pc += n
		instr := Instr{Op: op, Sub: sub}
		next, err := skipPrefixedImmediates(body, pc, instr)
		return instr, next, err
	}

	instr := Instr{Op: op}
	next, err := skipImmediates(body, pc, op)
	return instr, next, err
}

func skipVaruint32(body []byte, pc int) (int, error) {
	_, n, err := leb128.GetVarUint32(body[pc:])
	return pc + n, err
}

func skipBytes(body []byte, pc, n int) (int, error) {
	if pc+n > len(body) {
		return 0, leb128.ErrTruncated
	}
	return pc + n, nil
}

func skipImmediates(body []byte, pc int, op byte) (int, error) {
	switch op {
	case OpBlock, OpLoop, OpIf:
		// Block types encode as a signed 33-bit value.
		_, n, err := leb128.GetVarint33(body[pc:])
		return pc + n, err

	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee,
		OpGlobalGet, OpGlobalSet, OpTableGet, OpTableSet, OpRefFunc:
		return skipVaruint32(body, pc)

	case OpBrTable:
		count, n, err := leb128.GetVarUint32(body[pc:])
		if err != nil {
			return 0, err
		}
		pc += n
		for i := uint32(0); i <= count; i++ {
			if pc, err = skipVaruint32(body, pc); err != nil {
				return 0, err
			}
		}
		return pc, nil

	case OpCallIndirect:
		pc, err := skipVaruint32(body, pc)
		if err != nil {
			return 0, err
		}
		return skipVaruint32(body, pc)

	case OpSelectT:
		count, n, err := leb128.GetVarUint32(body[pc:])
		if err != nil {
			return 0, err
		}
		return skipBytes(body, pc+n, int(count))

	case OpRefNull, OpMemorySize, OpMemoryGrow:
		return skipBytes(body, pc, 1)

	case OpI32Const:
		_, n, err := leb128.GetVarint32(body[pc:])
		return pc + n, err

	case OpI64Const:
		_, n, err := leb128.GetVarint64(body[pc:])
		return pc + n, err

	case OpF32Const:
		return skipBytes(body, pc, 4)

	case OpF64Const:
		return skipBytes(body, pc, 8)
	}

	if op >= OpI32Load && op <= OpI64Store32 {
		return skipMemarg(body, pc)
	}

	// All remaining single-byte opcodes in the assigned ranges take no
	// immediates.
	switch {
	case op <= OpCallIndirect && op != 0x06 && op != 0x07 && op != 0x08 && op != 0x09 && op != 0x0a:
		return pc, nil
	case op == OpDrop || op == OpSelect:
		return pc, nil
	case op >= OpI32Eqz && op <= OpI64Extend32S:
		return pc, nil
	case op == OpRefIsNull:
		return pc, nil
	}
	return 0, &UnknownOpcodeError{Opcode: Instr{Op: op}}
}

func skipMemarg(body []byte, pc int) (int, error) {
	pc, err := skipVaruint32(body, pc)
	if err != nil {
		return 0, err
	}
	return skipVaruint32(body, pc)
}

func skipPrefixedImmediates(body []byte, pc int, instr Instr) (int, error) {
	switch instr.Op {
	case OpPrefix:
		switch instr.Sub {
		case OpI32TruncSatF32S, OpI32TruncSatF32U, OpI32TruncSatF64S, OpI32TruncSatF64U,
			OpI64TruncSatF32S, OpI64TruncSatF32U, OpI64TruncSatF64S, OpI64TruncSatF64U:
			return pc, nil
		case OpMemoryInit:
			pc, err := skipVaruint32(body, pc)
			if err != nil {
				return 0, err
			}
			return skipBytes(body, pc, 1)
		case OpDataDrop, OpElemDrop, OpTableGrow, OpTableSize, OpTableFill:
			return skipVaruint32(body, pc)
		case OpMemoryCopy:
			return skipBytes(body, pc, 2)
		case OpMemoryFill:
			return skipBytes(body, pc, 1)
		case OpTableInit, OpTableCopy:
			pc, err := skipVaruint32(body, pc)
			if err != nil {
				return 0, err
			}
			return skipVaruint32(body, pc)
		}
		return 0, &UnknownOpcodeError{Opcode: instr}

	case OpVectorPrefix:
		switch {
		case instr.Sub <= 11:
			// v128 loads and stores.
			return skipMemarg(body, pc)
		case instr.Sub == OpV128Const || instr.Sub == 13:
			// v128.const and i8x16.shuffle carry 16 immediate bytes.
			return skipBytes(body, pc, 16)
		case instr.Sub >= OpI8x16ExtractLaneS && instr.Sub <= OpF64x2ReplaceLane:
			return skipBytes(body, pc, 1)
		case instr.Sub >= 0x54 && instr.Sub <= 0x5b:
			// Lane loads and stores: memarg plus lane index.
			pc, err := skipMemarg(body, pc)
			if err != nil {
				return 0, err
			}
			return skipBytes(body, pc, 1)
		case instr.Sub <= 0x100:
			return pc, nil
		}
		return 0, &UnknownOpcodeError{Opcode: instr}

	case OpAtomicPrefix:
		if instr.Sub == OpAtomicFence {
			return skipBytes(body, pc, 1)
		}
		if instr.Sub <= 0x4e {
			return skipMemarg(body, pc)
		}
		return 0, &UnknownOpcodeError{Opcode: instr}
	}
	return 0, &UnknownOpcodeError{Opcode: instr}
}
