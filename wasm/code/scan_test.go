package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/wasm/leb128"
)

// scan decodes body from the start and returns the instruction sequence.
func scan(t *testing.T, body []byte) []Instr {
	var instrs []Instr
	for pc := 0; pc < len(body); {
		instr, next, err := Next(body, pc)
		require.NoError(t, err)
		require.Greater(t, next, pc)
		instrs = append(instrs, instr)
		pc = next
	}
	return instrs
}

func TestNextSimpleBody(t *testing.T) {
	body := []byte{
		OpI32Const, 0x2a,
		OpLocalGet, 0x00,
		OpI32Add,
		OpEnd,
	}
	assert.Equal(t, []Instr{
		{Op: OpI32Const},
		{Op: OpLocalGet},
		{Op: OpI32Add},
		{Op: OpEnd},
	}, scan(t, body))
}

func TestNextSkipsImmediates(t *testing.T) {
	var body []byte
	body = append(body, OpBlock, 0x40)
	body = append(body, OpI64Const)
	body = leb128.AppendVarint64(body, -123456789)
	body = append(body, OpF32Const, 0, 0, 0, 0)
	body = append(body, OpF64Const, 0, 0, 0, 0, 0, 0, 0, 0)
	body = append(body, OpI32Load, 0x02, 0x10)
	body = append(body, OpCallIndirect, 0x00, 0x00)
	body = append(body, OpBrTable, 0x02, 0x00, 0x01, 0x02)
	body = append(body, OpSelectT, 0x01, 0x7f)
	body = append(body, OpRefNull, 0x70)
	body = append(body, OpMemorySize, 0x00)
	body = append(body, OpEnd)

	instrs := scan(t, body)
	ops := make([]byte, len(instrs))
	for i, instr := range instrs {
		ops[i] = instr.Op
	}
	assert.Equal(t, []byte{
		OpBlock, OpI64Const, OpF32Const, OpF64Const, OpI32Load,
		OpCallIndirect, OpBrTable, OpSelectT, OpRefNull, OpMemorySize, OpEnd,
	}, ops)
}

func TestNextPrefixed(t *testing.T) {
	var body []byte
	body = append(body, OpPrefix, OpI32TruncSatF64S)
	body = append(body, OpPrefix, OpMemoryFill, 0x00)
	body = append(body, OpPrefix, OpMemoryInit, 0x01, 0x00)
	body = append(body, OpPrefix, OpTableCopy, 0x00, 0x00)
	body = append(body, OpVectorPrefix, OpV128Const)
	body = append(body, make([]byte, 16)...)
	body = append(body, OpVectorPrefix, OpI32x4ExtractLane, 0x02)
	body = append(body, OpAtomicPrefix, OpI32AtomicRmwAdd, 0x02, 0x00)
	body = append(body, OpAtomicPrefix, OpAtomicFence, 0x00)
	body = append(body, OpEnd)

	instrs := scan(t, body)
	assert.Equal(t, []Instr{
		{Op: OpPrefix, Sub: OpI32TruncSatF64S},
		{Op: OpPrefix, Sub: OpMemoryFill},
		{Op: OpPrefix, Sub: OpMemoryInit},
		{Op: OpPrefix, Sub: OpTableCopy},
		{Op: OpVectorPrefix, Sub: OpV128Const},
		{Op: OpVectorPrefix, Sub: OpI32x4ExtractLane},
		{Op: OpAtomicPrefix, Sub: OpI32AtomicRmwAdd},
		{Op: OpAtomicPrefix, Sub: OpAtomicFence},
		{Op: OpEnd},
	}, instrs)
}

func TestNextErrors(t *testing.T) {
	_, _, err := Next(nil, 0)
	assert.Equal(t, leb128.ErrTruncated, err)

	// 0x06 is unassigned.
	_, _, err = Next([]byte{0x06}, 0)
	var unknown *UnknownOpcodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, byte(0x06), unknown.Opcode.Op)

	// Truncated immediates.
	_, _, err = Next([]byte{OpI32Const}, 0)
	assert.Error(t, err)

	_, _, err = Next([]byte{OpF64Const, 0, 0}, 0)
	assert.Error(t, err)

	_, _, err = Next([]byte{OpVectorPrefix, OpV128Const, 0}, 0)
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, "i32.add", Name(Instr{Op: OpI32Add}))
	assert.Equal(t, "memory.fill", Name(Instr{Op: OpPrefix, Sub: OpMemoryFill}))
	assert.Equal(t, "i8x16.splat", Name(Instr{Op: OpVectorPrefix, Sub: OpI8x16Splat}))
	assert.Equal(t, "i64.atomic.rmw.cmpxchg", Name(Instr{Op: OpAtomicPrefix, Sub: OpI64AtomicRmwCmpxchg}))

	// Unnamed instructions fall back to their hex encoding.
	assert.Equal(t, "0xfd:98", Name(Instr{Op: OpVectorPrefix, Sub: 98}))
}
