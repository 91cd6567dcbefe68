package interpreter

import (
	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm/code"
)

// execAtomic handles the 0xfe sub-opcode space. The full-width i32 and i64
// forms execute under the memory mutex; the narrow-width forms route
// through the unknown-opcode policy. memory.atomic.notify always reports
// zero woken waiters and the wait forms trap, matching an unshared memory.
func (f *frame) execAtomic(sub uint32) {
	switch sub {
	case code.OpMemoryAtomicNotify:
		mem := f.m.inst.memory(0)
		f.popI32() // waiter count
		// The address must be in bounds and aligned even with no waiters.
		mem.AtomicUint32(f.ea())
		f.pushI32(0)

	case code.OpMemoryAtomicWait32, code.OpMemoryAtomicWait64:
		panic(exec.TrapExpectedSharedMemory)

	case code.OpAtomicFence:
		f.readByte()

	case code.OpI32AtomicLoad:
		mem := f.m.inst.memory(0)
		f.pushI32(int32(mem.AtomicUint32(f.ea())))
	case code.OpI64AtomicLoad:
		mem := f.m.inst.memory(0)
		f.pushI64(int64(mem.AtomicUint64(f.ea())))
	case code.OpI32AtomicStore:
		mem := f.m.inst.memory(0)
		v := uint32(f.popI32())
		mem.AtomicPutUint32(f.ea(), v)
	case code.OpI64AtomicStore:
		mem := f.m.inst.memory(0)
		v := uint64(f.popI64())
		mem.AtomicPutUint64(f.ea(), v)

	case code.OpI32AtomicRmwAdd:
		f.atomicRMW32(func(old, v uint32) uint32 { return old + v })
	case code.OpI64AtomicRmwAdd:
		f.atomicRMW64(func(old, v uint64) uint64 { return old + v })
	case code.OpI32AtomicRmwSub:
		f.atomicRMW32(func(old, v uint32) uint32 { return old - v })
	case code.OpI64AtomicRmwSub:
		f.atomicRMW64(func(old, v uint64) uint64 { return old - v })
	case code.OpI32AtomicRmwAnd:
		f.atomicRMW32(func(old, v uint32) uint32 { return old & v })
	case code.OpI64AtomicRmwAnd:
		f.atomicRMW64(func(old, v uint64) uint64 { return old & v })
	case code.OpI32AtomicRmwOr:
		f.atomicRMW32(func(old, v uint32) uint32 { return old | v })
	case code.OpI64AtomicRmwOr:
		f.atomicRMW64(func(old, v uint64) uint64 { return old | v })
	case code.OpI32AtomicRmwXor:
		f.atomicRMW32(func(old, v uint32) uint32 { return old ^ v })
	case code.OpI64AtomicRmwXor:
		f.atomicRMW64(func(old, v uint64) uint64 { return old ^ v })
	case code.OpI32AtomicRmwXchg:
		f.atomicRMW32(func(old, v uint32) uint32 { return v })
	case code.OpI64AtomicRmwXchg:
		f.atomicRMW64(func(old, v uint64) uint64 { return v })

	case code.OpI32AtomicRmwCmpxchg:
		mem := f.m.inst.memory(0)
		desired := uint32(f.popI32())
		expected := uint32(f.popI32())
		f.pushI32(int32(mem.AtomicCompareExchange32(f.ea(), expected, desired)))
	case code.OpI64AtomicRmwCmpxchg:
		mem := f.m.inst.memory(0)
		desired := uint64(f.popI64())
		expected := uint64(f.popI64())
		f.pushI64(int64(mem.AtomicCompareExchange64(f.ea(), expected, desired)))

	default:
		f.unknown(code.Instr{Op: code.OpAtomicPrefix, Sub: sub})
	}
}

func (f *frame) atomicRMW32(op func(old, v uint32) uint32) {
	mem := f.m.inst.memory(0)
	v := uint32(f.popI32())
	old := mem.AtomicRMW32(f.ea(), func(cur uint32) uint32 { return op(cur, v) })
	f.pushI32(int32(old))
}

func (f *frame) atomicRMW64(op func(old, v uint64) uint64) {
	mem := f.m.inst.memory(0)
	v := uint64(f.popI64())
	old := mem.AtomicRMW64(f.ea(), func(cur uint64) uint64 { return op(cur, v) })
	f.pushI64(int64(old))
}
