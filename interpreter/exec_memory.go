package interpreter

import (
	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm/code"
)

// ea pops a base address and combines it with a memarg offset.
func (f *frame) ea() uint64 {
	offset := f.readMemarg()
	base := uint32(f.popI32())
	return exec.EffectiveAddress(base, offset)
}

// execMemory handles loads, stores, memory.size, and memory.grow. It
// reports false for opcodes outside its range.
func (f *frame) execMemory(op byte) bool {
	if op != code.OpMemorySize && op != code.OpMemoryGrow &&
		(op < code.OpI32Load || op > code.OpI64Store32) {
		return false
	}
	mem := f.m.inst.memory(0)

	switch op {
	case code.OpI32Load:
		f.pushI32(int32(mem.Uint32(f.ea())))
	case code.OpI64Load:
		f.pushI64(int64(mem.Uint64(f.ea())))
	case code.OpF32Load:
		f.pushF32(mem.Float32(f.ea()))
	case code.OpF64Load:
		f.pushF64(mem.Float64(f.ea()))
	case code.OpI32Load8S:
		f.pushI32(int32(int8(mem.Uint8(f.ea()))))
	case code.OpI32Load8U:
		f.pushI32(int32(mem.Uint8(f.ea())))
	case code.OpI32Load16S:
		f.pushI32(int32(int16(mem.Uint16(f.ea()))))
	case code.OpI32Load16U:
		f.pushI32(int32(mem.Uint16(f.ea())))
	case code.OpI64Load8S:
		f.pushI64(int64(int8(mem.Uint8(f.ea()))))
	case code.OpI64Load8U:
		f.pushI64(int64(mem.Uint8(f.ea())))
	case code.OpI64Load16S:
		f.pushI64(int64(int16(mem.Uint16(f.ea()))))
	case code.OpI64Load16U:
		f.pushI64(int64(mem.Uint16(f.ea())))
	case code.OpI64Load32S:
		f.pushI64(int64(int32(mem.Uint32(f.ea()))))
	case code.OpI64Load32U:
		f.pushI64(int64(mem.Uint32(f.ea())))

	case code.OpI32Store:
		v := f.popI32()
		mem.PutUint32(f.ea(), uint32(v))
	case code.OpI64Store:
		v := f.popI64()
		mem.PutUint64(f.ea(), uint64(v))
	case code.OpF32Store:
		v := f.popF32()
		mem.PutFloat32(f.ea(), v)
	case code.OpF64Store:
		v := f.popF64()
		mem.PutFloat64(f.ea(), v)
	case code.OpI32Store8:
		v := f.popI32()
		mem.PutUint8(f.ea(), byte(v))
	case code.OpI32Store16:
		v := f.popI32()
		mem.PutUint16(f.ea(), uint16(v))
	case code.OpI64Store8:
		v := f.popI64()
		mem.PutUint8(f.ea(), byte(v))
	case code.OpI64Store16:
		v := f.popI64()
		mem.PutUint16(f.ea(), uint16(v))
	case code.OpI64Store32:
		v := f.popI64()
		mem.PutUint32(f.ea(), uint32(v))

	case code.OpMemorySize:
		f.readByte()
		f.pushI32(int32(mem.Size()))
	case code.OpMemoryGrow:
		f.readByte()
		pages := uint32(f.popI32())
		old, err := mem.Grow(pages)
		if err != nil {
			f.pushI32(-1)
		} else {
			f.pushI32(int32(old))
		}
	}
	return true
}
