package interpreter

import (
	"encoding/binary"
	"math"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm/code"
)

// execVector handles the implemented portion of the 0xfd sub-opcode space:
// v128 moves, splats, lane accessors, bitwise logic, and lane-wise integer
// and float arithmetic. Everything else routes through the unknown-opcode
// policy.
func (f *frame) execVector(sub uint32) {
	switch sub {
	case code.OpV128Load:
		mem := f.m.inst.memory(0)
		f.pushV128(mem.V128(f.ea()))

	case code.OpV128Store:
		mem := f.m.inst.memory(0)
		v := f.popV128()
		mem.PutV128(f.ea(), v)

	case code.OpV128Const:
		if f.pc+16 > len(f.body) {
			panic(exec.TrapUnknownOpcode)
		}
		var v [16]byte
		copy(v[:], f.body[f.pc:])
		f.pc += 16
		f.pushV128(v)

	case code.OpI8x16Splat:
		b := byte(f.popI32())
		var v [16]byte
		for i := range v {
			v[i] = b
		}
		f.pushV128(v)

	case code.OpI16x8Splat:
		x := uint16(f.popI32())
		var v [16]byte
		for i := 0; i < 8; i++ {
			binary.LittleEndian.PutUint16(v[i*2:], x)
		}
		f.pushV128(v)

	case code.OpI32x4Splat:
		x := uint32(f.popI32())
		var v [16]byte
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(v[i*4:], x)
		}
		f.pushV128(v)

	case code.OpI64x2Splat:
		x := uint64(f.popI64())
		var v [16]byte
		binary.LittleEndian.PutUint64(v[0:], x)
		binary.LittleEndian.PutUint64(v[8:], x)
		f.pushV128(v)

	case code.OpF32x4Splat:
		x := math.Float32bits(f.popF32())
		var v [16]byte
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(v[i*4:], x)
		}
		f.pushV128(v)

	case code.OpF64x2Splat:
		x := math.Float64bits(f.popF64())
		var v [16]byte
		binary.LittleEndian.PutUint64(v[0:], x)
		binary.LittleEndian.PutUint64(v[8:], x)
		f.pushV128(v)

	case code.OpI8x16ExtractLaneS:
		lane := f.laneIndex(16)
		v := f.popV128()
		f.pushI32(int32(int8(v[lane])))
	case code.OpI8x16ExtractLaneU:
		lane := f.laneIndex(16)
		v := f.popV128()
		f.pushI32(int32(v[lane]))
	case code.OpI8x16ReplaceLane:
		lane := f.laneIndex(16)
		x := byte(f.popI32())
		v := f.popV128()
		v[lane] = x
		f.pushV128(v)

	case code.OpI16x8ExtractLaneS:
		lane := f.laneIndex(8)
		v := f.popV128()
		f.pushI32(int32(int16(binary.LittleEndian.Uint16(v[lane*2:]))))
	case code.OpI16x8ExtractLaneU:
		lane := f.laneIndex(8)
		v := f.popV128()
		f.pushI32(int32(binary.LittleEndian.Uint16(v[lane*2:])))
	case code.OpI16x8ReplaceLane:
		lane := f.laneIndex(8)
		x := uint16(f.popI32())
		v := f.popV128()
		binary.LittleEndian.PutUint16(v[lane*2:], x)
		f.pushV128(v)

	case code.OpI32x4ExtractLane:
		lane := f.laneIndex(4)
		v := f.popV128()
		f.pushI32(int32(binary.LittleEndian.Uint32(v[lane*4:])))
	case code.OpI32x4ReplaceLane:
		lane := f.laneIndex(4)
		x := uint32(f.popI32())
		v := f.popV128()
		binary.LittleEndian.PutUint32(v[lane*4:], x)
		f.pushV128(v)

	case code.OpI64x2ExtractLane:
		lane := f.laneIndex(2)
		v := f.popV128()
		f.pushI64(int64(binary.LittleEndian.Uint64(v[lane*8:])))
	case code.OpI64x2ReplaceLane:
		lane := f.laneIndex(2)
		x := uint64(f.popI64())
		v := f.popV128()
		binary.LittleEndian.PutUint64(v[lane*8:], x)
		f.pushV128(v)

	case code.OpF32x4ExtractLane:
		lane := f.laneIndex(4)
		v := f.popV128()
		f.pushF32(math.Float32frombits(binary.LittleEndian.Uint32(v[lane*4:])))
	case code.OpF32x4ReplaceLane:
		lane := f.laneIndex(4)
		x := math.Float32bits(f.popF32())
		v := f.popV128()
		binary.LittleEndian.PutUint32(v[lane*4:], x)
		f.pushV128(v)

	case code.OpF64x2ExtractLane:
		lane := f.laneIndex(2)
		v := f.popV128()
		f.pushF64(math.Float64frombits(binary.LittleEndian.Uint64(v[lane*8:])))
	case code.OpF64x2ReplaceLane:
		lane := f.laneIndex(2)
		x := math.Float64bits(f.popF64())
		v := f.popV128()
		binary.LittleEndian.PutUint64(v[lane*8:], x)
		f.pushV128(v)

	case code.OpV128Not:
		v := f.popV128()
		for i := range v {
			v[i] = ^v[i]
		}
		f.pushV128(v)
	case code.OpV128And:
		f.vecBitwise(func(a, b byte) byte { return a & b })
	case code.OpV128AndNot:
		f.vecBitwise(func(a, b byte) byte { return a &^ b })
	case code.OpV128Or:
		f.vecBitwise(func(a, b byte) byte { return a | b })
	case code.OpV128Xor:
		f.vecBitwise(func(a, b byte) byte { return a ^ b })

	case code.OpV128Bitselect:
		mask := f.popV128()
		b := f.popV128()
		a := f.popV128()
		var v [16]byte
		for i := range v {
			v[i] = a[i]&mask[i] | b[i]&^mask[i]
		}
		f.pushV128(v)

	case code.OpV128AnyTrue:
		v := f.popV128()
		any := false
		for _, b := range v {
			if b != 0 {
				any = true
				break
			}
		}
		f.pushBool(any)

	case code.OpI32x4AllTrue:
		v := f.popV128()
		all := true
		for i := 0; i < 4; i++ {
			if binary.LittleEndian.Uint32(v[i*4:]) == 0 {
				all = false
				break
			}
		}
		f.pushBool(all)

	case code.OpI8x16Add:
		f.vecBitwise(func(a, b byte) byte { return a + b })
	case code.OpI8x16Sub:
		f.vecBitwise(func(a, b byte) byte { return a - b })

	case code.OpI16x8Add:
		f.vecLanes16(func(a, b uint16) uint16 { return a + b })
	case code.OpI16x8Sub:
		f.vecLanes16(func(a, b uint16) uint16 { return a - b })

	case code.OpI32x4Add:
		f.vecLanes32(func(a, b uint32) uint32 { return a + b })
	case code.OpI32x4Sub:
		f.vecLanes32(func(a, b uint32) uint32 { return a - b })
	case code.OpI32x4Mul:
		f.vecLanes32(func(a, b uint32) uint32 { return a * b })

	case code.OpI64x2Add:
		f.vecLanes64(func(a, b uint64) uint64 { return a + b })
	case code.OpI64x2Sub:
		f.vecLanes64(func(a, b uint64) uint64 { return a - b })
	case code.OpI64x2Mul:
		f.vecLanes64(func(a, b uint64) uint64 { return a * b })

	case code.OpF32x4Add:
		f.vecFloat32(func(a, b float32) float32 { return a + b })
	case code.OpF32x4Sub:
		f.vecFloat32(func(a, b float32) float32 { return a - b })
	case code.OpF32x4Mul:
		f.vecFloat32(func(a, b float32) float32 { return a * b })
	case code.OpF32x4Div:
		f.vecFloat32(func(a, b float32) float32 { return a / b })

	case code.OpF64x2Add:
		f.vecFloat64(func(a, b float64) float64 { return a + b })
	case code.OpF64x2Sub:
		f.vecFloat64(func(a, b float64) float64 { return a - b })
	case code.OpF64x2Mul:
		f.vecFloat64(func(a, b float64) float64 { return a * b })
	case code.OpF64x2Div:
		f.vecFloat64(func(a, b float64) float64 { return a / b })

	default:
		f.unknown(code.Instr{Op: code.OpVectorPrefix, Sub: sub})
	}
}

// laneIndex reads a lane immediate and traps if it is out of range for a
// vector with the given lane count.
func (f *frame) laneIndex(lanes int) int {
	lane := int(f.readByte())
	if lane >= lanes {
		panic(exec.TrapUnknownOpcode)
	}
	return lane
}

func (f *frame) vecBitwise(op func(a, b byte) byte) {
	b := f.popV128()
	a := f.popV128()
	var v [16]byte
	for i := range v {
		v[i] = op(a[i], b[i])
	}
	f.pushV128(v)
}

func (f *frame) vecLanes16(op func(a, b uint16) uint16) {
	b := f.popV128()
	a := f.popV128()
	var v [16]byte
	for i := 0; i < 8; i++ {
		x := op(binary.LittleEndian.Uint16(a[i*2:]), binary.LittleEndian.Uint16(b[i*2:]))
		binary.LittleEndian.PutUint16(v[i*2:], x)
	}
	f.pushV128(v)
}

func (f *frame) vecLanes32(op func(a, b uint32) uint32) {
	b := f.popV128()
	a := f.popV128()
	var v [16]byte
	for i := 0; i < 4; i++ {
		x := op(binary.LittleEndian.Uint32(a[i*4:]), binary.LittleEndian.Uint32(b[i*4:]))
		binary.LittleEndian.PutUint32(v[i*4:], x)
	}
	f.pushV128(v)
}

func (f *frame) vecLanes64(op func(a, b uint64) uint64) {
	b := f.popV128()
	a := f.popV128()
	var v [16]byte
	for i := 0; i < 2; i++ {
		x := op(binary.LittleEndian.Uint64(a[i*8:]), binary.LittleEndian.Uint64(b[i*8:]))
		binary.LittleEndian.PutUint64(v[i*8:], x)
	}
	f.pushV128(v)
}

func (f *frame) vecFloat32(op func(a, b float32) float32) {
	f.vecLanes32(func(a, b uint32) uint32 {
		return math.Float32bits(op(math.Float32frombits(a), math.Float32frombits(b)))
	})
}

func (f *frame) vecFloat64(op func(a, b float64) float64) {
	f.vecLanes64(func(a, b uint64) uint64 {
		return math.Float64bits(op(math.Float64frombits(a), math.Float64frombits(b)))
	})
}
