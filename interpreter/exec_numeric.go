package interpreter

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm/code"
)

// execNumeric handles constants, comparisons, arithmetic, and conversions.
// It reports false for opcodes outside its range.
func (f *frame) execNumeric(op byte) bool {
	switch op {
	case code.OpI32Const:
		f.pushI32(f.readVarint32())
	case code.OpI64Const:
		f.pushI64(f.readVarint64())
	case code.OpF32Const:
		if f.pc+4 > len(f.body) {
			panic(exec.TrapUnknownOpcode)
		}
		f.pushF32(math.Float32frombits(binary.LittleEndian.Uint32(f.body[f.pc:])))
		f.pc += 4
	case code.OpF64Const:
		if f.pc+8 > len(f.body) {
			panic(exec.TrapUnknownOpcode)
		}
		f.pushF64(math.Float64frombits(binary.LittleEndian.Uint64(f.body[f.pc:])))
		f.pc += 8

	case code.OpI32Eqz:
		f.pushBool(f.popI32() == 0)
	case code.OpI32Eq:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a == b)
	case code.OpI32Ne:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a != b)
	case code.OpI32LtS:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a < b)
	case code.OpI32LtU:
		b, a := f.popI32(), f.popI32()
		f.pushBool(uint32(a) < uint32(b))
	case code.OpI32GtS:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a > b)
	case code.OpI32GtU:
		b, a := f.popI32(), f.popI32()
		f.pushBool(uint32(a) > uint32(b))
	case code.OpI32LeS:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a <= b)
	case code.OpI32LeU:
		b, a := f.popI32(), f.popI32()
		f.pushBool(uint32(a) <= uint32(b))
	case code.OpI32GeS:
		b, a := f.popI32(), f.popI32()
		f.pushBool(a >= b)
	case code.OpI32GeU:
		b, a := f.popI32(), f.popI32()
		f.pushBool(uint32(a) >= uint32(b))

	case code.OpI64Eqz:
		f.pushBool(f.popI64() == 0)
	case code.OpI64Eq:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a == b)
	case code.OpI64Ne:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a != b)
	case code.OpI64LtS:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a < b)
	case code.OpI64LtU:
		b, a := f.popI64(), f.popI64()
		f.pushBool(uint64(a) < uint64(b))
	case code.OpI64GtS:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a > b)
	case code.OpI64GtU:
		b, a := f.popI64(), f.popI64()
		f.pushBool(uint64(a) > uint64(b))
	case code.OpI64LeS:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a <= b)
	case code.OpI64LeU:
		b, a := f.popI64(), f.popI64()
		f.pushBool(uint64(a) <= uint64(b))
	case code.OpI64GeS:
		b, a := f.popI64(), f.popI64()
		f.pushBool(a >= b)
	case code.OpI64GeU:
		b, a := f.popI64(), f.popI64()
		f.pushBool(uint64(a) >= uint64(b))

	case code.OpF32Eq:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a == b)
	case code.OpF32Ne:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a != b)
	case code.OpF32Lt:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a < b)
	case code.OpF32Gt:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a > b)
	case code.OpF32Le:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a <= b)
	case code.OpF32Ge:
		b, a := f.popF32(), f.popF32()
		f.pushBool(a >= b)

	case code.OpF64Eq:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a == b)
	case code.OpF64Ne:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a != b)
	case code.OpF64Lt:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a < b)
	case code.OpF64Gt:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a > b)
	case code.OpF64Le:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a <= b)
	case code.OpF64Ge:
		b, a := f.popF64(), f.popF64()
		f.pushBool(a >= b)

	case code.OpI32Clz:
		f.pushI32(int32(bits.LeadingZeros32(uint32(f.popI32()))))
	case code.OpI32Ctz:
		f.pushI32(int32(bits.TrailingZeros32(uint32(f.popI32()))))
	case code.OpI32Popcnt:
		f.pushI32(int32(bits.OnesCount32(uint32(f.popI32()))))
	case code.OpI32Add:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a + b)
	case code.OpI32Sub:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a - b)
	case code.OpI32Mul:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a * b)
	case code.OpI32DivS:
		b, a := f.popI32(), f.popI32()
		f.pushI32(i32DivS(a, b))
	case code.OpI32DivU:
		b, a := f.popI32(), f.popI32()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		f.pushI32(int32(uint32(a) / uint32(b)))
	case code.OpI32RemS:
		b, a := f.popI32(), f.popI32()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			f.pushI32(0)
		} else {
			f.pushI32(a % b)
		}
	case code.OpI32RemU:
		b, a := f.popI32(), f.popI32()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		f.pushI32(int32(uint32(a) % uint32(b)))
	case code.OpI32And:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a & b)
	case code.OpI32Or:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a | b)
	case code.OpI32Xor:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a ^ b)
	case code.OpI32Shl:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a << (uint32(b) & 31))
	case code.OpI32ShrS:
		b, a := f.popI32(), f.popI32()
		f.pushI32(a >> (uint32(b) & 31))
	case code.OpI32ShrU:
		b, a := f.popI32(), f.popI32()
		f.pushI32(int32(uint32(a) >> (uint32(b) & 31)))
	case code.OpI32Rotl:
		b, a := f.popI32(), f.popI32()
		f.pushI32(int32(bits.RotateLeft32(uint32(a), int(b))))
	case code.OpI32Rotr:
		b, a := f.popI32(), f.popI32()
		f.pushI32(int32(bits.RotateLeft32(uint32(a), -int(b))))

	case code.OpI64Clz:
		f.pushI64(int64(bits.LeadingZeros64(uint64(f.popI64()))))
	case code.OpI64Ctz:
		f.pushI64(int64(bits.TrailingZeros64(uint64(f.popI64()))))
	case code.OpI64Popcnt:
		f.pushI64(int64(bits.OnesCount64(uint64(f.popI64()))))
	case code.OpI64Add:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a + b)
	case code.OpI64Sub:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a - b)
	case code.OpI64Mul:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a * b)
	case code.OpI64DivS:
		b, a := f.popI64(), f.popI64()
		f.pushI64(i64DivS(a, b))
	case code.OpI64DivU:
		b, a := f.popI64(), f.popI64()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		f.pushI64(int64(uint64(a) / uint64(b)))
	case code.OpI64RemS:
		b, a := f.popI64(), f.popI64()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			f.pushI64(0)
		} else {
			f.pushI64(a % b)
		}
	case code.OpI64RemU:
		b, a := f.popI64(), f.popI64()
		if b == 0 {
			panic(exec.TrapIntegerDivideByZero)
		}
		f.pushI64(int64(uint64(a) % uint64(b)))
	case code.OpI64And:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a & b)
	case code.OpI64Or:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a | b)
	case code.OpI64Xor:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a ^ b)
	case code.OpI64Shl:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a << (uint64(b) & 63))
	case code.OpI64ShrS:
		b, a := f.popI64(), f.popI64()
		f.pushI64(a >> (uint64(b) & 63))
	case code.OpI64ShrU:
		b, a := f.popI64(), f.popI64()
		f.pushI64(int64(uint64(a) >> (uint64(b) & 63)))
	case code.OpI64Rotl:
		b, a := f.popI64(), f.popI64()
		f.pushI64(int64(bits.RotateLeft64(uint64(a), int(b))))
	case code.OpI64Rotr:
		b, a := f.popI64(), f.popI64()
		f.pushI64(int64(bits.RotateLeft64(uint64(a), -int(b))))

	case code.OpF32Abs:
		f.pushF32(float32(math.Abs(float64(f.popF32()))))
	case code.OpF32Neg:
		f.pushF32(-f.popF32())
	case code.OpF32Ceil:
		f.pushF32(float32(math.Ceil(float64(f.popF32()))))
	case code.OpF32Floor:
		f.pushF32(float32(math.Floor(float64(f.popF32()))))
	case code.OpF32Trunc:
		f.pushF32(float32(math.Trunc(float64(f.popF32()))))
	case code.OpF32Nearest:
		f.pushF32(float32(math.RoundToEven(float64(f.popF32()))))
	case code.OpF32Sqrt:
		f.pushF32(float32(math.Sqrt(float64(f.popF32()))))
	case code.OpF32Add:
		b, a := f.popF32(), f.popF32()
		f.pushF32(a + b)
	case code.OpF32Sub:
		b, a := f.popF32(), f.popF32()
		f.pushF32(a - b)
	case code.OpF32Mul:
		b, a := f.popF32(), f.popF32()
		f.pushF32(a * b)
	case code.OpF32Div:
		b, a := f.popF32(), f.popF32()
		f.pushF32(a / b)
	case code.OpF32Min:
		b, a := f.popF32(), f.popF32()
		f.pushF32(float32(fmin(float64(a), float64(b))))
	case code.OpF32Max:
		b, a := f.popF32(), f.popF32()
		f.pushF32(float32(fmax(float64(a), float64(b))))
	case code.OpF32Copysign:
		b, a := f.popF32(), f.popF32()
		f.pushF32(float32(math.Copysign(float64(a), float64(b))))

	case code.OpF64Abs:
		f.pushF64(math.Abs(f.popF64()))
	case code.OpF64Neg:
		f.pushF64(-f.popF64())
	case code.OpF64Ceil:
		f.pushF64(math.Ceil(f.popF64()))
	case code.OpF64Floor:
		f.pushF64(math.Floor(f.popF64()))
	case code.OpF64Trunc:
		f.pushF64(math.Trunc(f.popF64()))
	case code.OpF64Nearest:
		f.pushF64(math.RoundToEven(f.popF64()))
	case code.OpF64Sqrt:
		f.pushF64(math.Sqrt(f.popF64()))
	case code.OpF64Add:
		b, a := f.popF64(), f.popF64()
		f.pushF64(a + b)
	case code.OpF64Sub:
		b, a := f.popF64(), f.popF64()
		f.pushF64(a - b)
	case code.OpF64Mul:
		b, a := f.popF64(), f.popF64()
		f.pushF64(a * b)
	case code.OpF64Div:
		b, a := f.popF64(), f.popF64()
		f.pushF64(a / b)
	case code.OpF64Min:
		b, a := f.popF64(), f.popF64()
		f.pushF64(fmin(a, b))
	case code.OpF64Max:
		b, a := f.popF64(), f.popF64()
		f.pushF64(fmax(a, b))
	case code.OpF64Copysign:
		b, a := f.popF64(), f.popF64()
		f.pushF64(math.Copysign(a, b))

	case code.OpI32WrapI64:
		f.pushI32(int32(f.popI64()))
	case code.OpI32TruncF32S:
		f.pushI32(int32(truncS(float64(f.popF32()), math.MinInt32, 1<<31)))
	case code.OpI32TruncF32U:
		f.pushI32(int32(truncU(float64(f.popF32()), 1<<32)))
	case code.OpI32TruncF64S:
		f.pushI32(int32(truncS(f.popF64(), math.MinInt32, 1<<31)))
	case code.OpI32TruncF64U:
		f.pushI32(int32(truncU(f.popF64(), 1<<32)))
	case code.OpI64ExtendI32S:
		f.pushI64(int64(f.popI32()))
	case code.OpI64ExtendI32U:
		f.pushI64(int64(uint32(f.popI32())))
	case code.OpI64TruncF32S:
		f.pushI64(truncS(float64(f.popF32()), math.MinInt64, 1<<63))
	case code.OpI64TruncF32U:
		f.pushI64(int64(truncU(float64(f.popF32()), 1<<64)))
	case code.OpI64TruncF64S:
		f.pushI64(truncS(f.popF64(), math.MinInt64, 1<<63))
	case code.OpI64TruncF64U:
		f.pushI64(int64(truncU(f.popF64(), 1<<64)))
	case code.OpF32ConvertI32S:
		f.pushF32(float32(f.popI32()))
	case code.OpF32ConvertI32U:
		f.pushF32(float32(uint32(f.popI32())))
	case code.OpF32ConvertI64S:
		f.pushF32(float32(f.popI64()))
	case code.OpF32ConvertI64U:
		f.pushF32(float32(uint64(f.popI64())))
	case code.OpF32DemoteF64:
		f.pushF32(float32(f.popF64()))
	case code.OpF64ConvertI32S:
		f.pushF64(float64(f.popI32()))
	case code.OpF64ConvertI32U:
		f.pushF64(float64(uint32(f.popI32())))
	case code.OpF64ConvertI64S:
		f.pushF64(float64(f.popI64()))
	case code.OpF64ConvertI64U:
		f.pushF64(float64(uint64(f.popI64())))
	case code.OpF64PromoteF32:
		f.pushF64(float64(f.popF32()))
	case code.OpI32ReinterpretF32:
		f.pushI32(int32(math.Float32bits(f.popF32())))
	case code.OpI64ReinterpretF64:
		f.pushI64(int64(math.Float64bits(f.popF64())))
	case code.OpF32ReinterpretI32:
		f.pushF32(math.Float32frombits(uint32(f.popI32())))
	case code.OpF64ReinterpretI64:
		f.pushF64(math.Float64frombits(uint64(f.popI64())))

	case code.OpI32Extend8S:
		f.pushI32(int32(int8(f.popI32())))
	case code.OpI32Extend16S:
		f.pushI32(int32(int16(f.popI32())))
	case code.OpI64Extend8S:
		f.pushI64(int64(int8(f.popI64())))
	case code.OpI64Extend16S:
		f.pushI64(int64(int16(f.popI64())))
	case code.OpI64Extend32S:
		f.pushI64(int64(int32(f.popI64())))

	default:
		return false
	}
	return true
}

func i32DivS(a, b int32) int32 {
	if b == 0 {
		panic(exec.TrapIntegerDivideByZero)
	}
	if a == math.MinInt32 && b == -1 {
		panic(exec.TrapIntegerOverflow)
	}
	return a / b
}

func i64DivS(a, b int64) int64 {
	if b == 0 {
		panic(exec.TrapIntegerDivideByZero)
	}
	if a == math.MinInt64 && b == -1 {
		panic(exec.TrapIntegerOverflow)
	}
	return a / b
}

// fmin and fmax follow the WASM min and max semantics. Go's math.Min and
// math.Max already propagate NaN and order -0 below +0.
func fmin(a, b float64) float64 {
	return math.Min(a, b)
}

func fmax(a, b float64) float64 {
	return math.Max(a, b)
}

// truncS truncates toward zero, trapping on NaN and values outside
// [min, maxExclusive). The upper bound is exclusive: the float64 form of a
// type's maximum rounds up to a power of two the type cannot hold.
func truncS(v float64, min, maxExclusive float64) int64 {
	if math.IsNaN(v) {
		panic(exec.TrapInvalidConversionToInteger)
	}
	t := math.Trunc(v)
	if t < min || t >= maxExclusive {
		panic(exec.TrapIntegerOverflow)
	}
	return int64(t)
}

// truncU truncates toward zero for unsigned targets, trapping outside
// [0, maxExclusive).
func truncU(v float64, maxExclusive float64) uint64 {
	if math.IsNaN(v) {
		panic(exec.TrapInvalidConversionToInteger)
	}
	t := math.Trunc(v)
	if t < 0 || t >= maxExclusive {
		panic(exec.TrapIntegerOverflow)
	}
	return uint64(t)
}
