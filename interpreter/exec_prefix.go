package interpreter

import (
	"math"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm/code"
)

// execPrefix handles the 0xfc sub-opcode space: saturating truncations and
// the bulk memory and table operations.
func (f *frame) execPrefix(sub uint32) {
	switch sub {
	case code.OpI32TruncSatF32S:
		f.pushI32(int32(truncSatS(float64(f.popF32()), math.MinInt32, 1<<31, math.MaxInt32)))
	case code.OpI32TruncSatF32U:
		f.pushI32(int32(truncSatU(float64(f.popF32()), 1<<32, math.MaxUint32)))
	case code.OpI32TruncSatF64S:
		f.pushI32(int32(truncSatS(f.popF64(), math.MinInt32, 1<<31, math.MaxInt32)))
	case code.OpI32TruncSatF64U:
		f.pushI32(int32(truncSatU(f.popF64(), 1<<32, math.MaxUint32)))
	case code.OpI64TruncSatF32S:
		f.pushI64(truncSatS(float64(f.popF32()), math.MinInt64, 1<<63, math.MaxInt64))
	case code.OpI64TruncSatF32U:
		f.pushI64(int64(truncSatU(float64(f.popF32()), 1<<64, math.MaxUint64)))
	case code.OpI64TruncSatF64S:
		f.pushI64(truncSatS(f.popF64(), math.MinInt64, 1<<63, math.MaxInt64))
	case code.OpI64TruncSatF64U:
		f.pushI64(int64(truncSatU(f.popF64(), 1<<64, math.MaxUint64)))

	case code.OpMemoryInit:
		segIdx := f.readVaruint32()
		f.readByte()
		mem := f.m.inst.memory(0)
		n := uint64(uint32(f.popI32()))
		src := uint64(uint32(f.popI32()))
		dst := uint64(uint32(f.popI32()))
		data := f.m.inst.dataSegment(segIdx)
		if src+n > uint64(len(data)) {
			panic(exec.TrapOutOfBoundsMemoryAccess)
		}
		mem.Init(dst, data[src:src+n])

	case code.OpDataDrop:
		f.m.inst.dropDataSegment(f.readVaruint32())

	case code.OpMemoryCopy:
		f.readByte()
		f.readByte()
		mem := f.m.inst.memory(0)
		n := uint64(uint32(f.popI32()))
		src := uint64(uint32(f.popI32()))
		dst := uint64(uint32(f.popI32()))
		mem.Copy(dst, src, n)

	case code.OpMemoryFill:
		f.readByte()
		mem := f.m.inst.memory(0)
		n := uint64(uint32(f.popI32()))
		v := byte(f.popI32())
		dst := uint64(uint32(f.popI32()))
		mem.Fill(dst, v, n)

	case code.OpTableInit:
		segIdx := f.readVaruint32()
		t := f.m.inst.table(f.readVaruint32())
		n := uint32(f.popI32())
		src := uint32(f.popI32())
		dst := uint32(f.popI32())
		elems := f.m.inst.elemSegment(segIdx)
		if uint64(src)+uint64(n) > uint64(len(elems)) ||
			uint64(dst)+uint64(n) > uint64(t.Size()) {
			panic(exec.TrapOutOfBoundsTableAccess)
		}
		for i := uint32(0); i < n; i++ {
			if err := t.Set(dst+i, elems[src+i]); err != nil {
				panic(exec.TrapOutOfBoundsTableAccess)
			}
		}

	case code.OpElemDrop:
		f.m.inst.dropElemSegment(f.readVaruint32())

	case code.OpTableCopy:
		dstTable := f.m.inst.table(f.readVaruint32())
		srcTable := f.m.inst.table(f.readVaruint32())
		n := uint32(f.popI32())
		src := uint32(f.popI32())
		dst := uint32(f.popI32())
		if err := srcTable.CopyTo(dstTable, dst, src, n); err != nil {
			panic(exec.TrapOutOfBoundsTableAccess)
		}

	case code.OpTableGrow:
		t := f.m.inst.table(f.readVaruint32())
		n := uint32(f.popI32())
		init := f.pop()
		old, err := t.Grow(n, init)
		if err != nil {
			f.pushI32(-1)
		} else {
			f.pushI32(int32(old))
		}

	case code.OpTableSize:
		t := f.m.inst.table(f.readVaruint32())
		f.pushI32(int32(t.Size()))

	case code.OpTableFill:
		t := f.m.inst.table(f.readVaruint32())
		n := uint32(f.popI32())
		v := f.pop()
		dst := uint32(f.popI32())
		if err := t.Fill(dst, n, v); err != nil {
			panic(exec.TrapOutOfBoundsTableAccess)
		}

	default:
		f.unknown(code.Instr{Op: code.OpPrefix, Sub: sub})
	}
}

// truncSatS is the saturating form of truncS: NaN becomes zero and
// out-of-range values clamp to the target type's bounds.
func truncSatS(v float64, min, maxExclusive float64, max int64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < min {
		return int64(min)
	}
	if t >= maxExclusive {
		return max
	}
	return int64(t)
}

// truncSatU is the saturating form of truncU.
func truncSatU(v float64, maxExclusive float64, max uint64) uint64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < 0 {
		return 0
	}
	if t >= maxExclusive {
		return max
	}
	return uint64(t)
}
