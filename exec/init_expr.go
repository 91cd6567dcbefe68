package exec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/leb128"
)

type InvalidGlobalIndexError uint32

func (e InvalidGlobalIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid index to global index space: %#x", uint32(e))
}

type InvalidFunctionIndexError uint32

func (e InvalidFunctionIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid index to function index space: %#x", uint32(e))
}

// ErrEmptyInitExpr is returned for a constant expression with no result.
var ErrEmptyInitExpr = fmt.Errorf("wasm: empty initializer expression")

// Constant expression opcodes.
const (
	opEnd       = 0x0b
	opI32Const  = 0x41
	opI64Const  = 0x42
	opF32Const  = 0x43
	opF64Const  = 0x44
	opGlobalGet = 0x23
	opRefNull   = 0xd0
	opRefFunc   = 0xd2
)

// EvalInitExpr executes the given encoded constant expression. globals is
// the imported-global index space and funcs the full function index space,
// consulted by global.get and ref.func respectively.
func EvalInitExpr(globals []*Global, funcs []Function, expr []byte) (wasm.Value, error) {
	var result wasm.Value
	haveResult := false

	if len(expr) == 0 {
		return wasm.Value{}, ErrEmptyInitExpr
	}

	for {
		if len(expr) == 0 {
			return wasm.Value{}, io.ErrUnexpectedEOF
		}
		opcode := expr[0]
		expr = expr[1:]

		switch opcode {
		case opI32Const:
			v, sz, err := leb128.GetVarint32(expr)
			if err != nil {
				return wasm.Value{}, err
			}
			expr = expr[sz:]
			result, haveResult = wasm.NewI32(v), true
		case opI64Const:
			v, sz, err := leb128.GetVarint64(expr)
			if err != nil {
				return wasm.Value{}, err
			}
			expr = expr[sz:]
			result, haveResult = wasm.NewI64(v), true
		case opF32Const:
			if len(expr) < 4 {
				return wasm.Value{}, io.ErrUnexpectedEOF
			}
			result, haveResult = wasm.NewF32(math.Float32frombits(binary.LittleEndian.Uint32(expr))), true
			expr = expr[4:]
		case opF64Const:
			if len(expr) < 8 {
				return wasm.Value{}, io.ErrUnexpectedEOF
			}
			result, haveResult = wasm.NewF64(math.Float64frombits(binary.LittleEndian.Uint64(expr))), true
			expr = expr[8:]
		case opGlobalGet:
			index, sz, err := leb128.GetVarUint32(expr)
			if err != nil {
				return wasm.Value{}, err
			}
			expr = expr[sz:]
			if index >= uint32(len(globals)) {
				return wasm.Value{}, InvalidGlobalIndexError(index)
			}
			result, haveResult = globals[index].Get(), true
		case opRefNull:
			if len(expr) == 0 {
				return wasm.Value{}, io.ErrUnexpectedEOF
			}
			t := wasm.ValueType(expr[0])
			expr = expr[1:]
			if !t.IsReference() {
				return wasm.Value{}, wasm.InvalidValueTypeError(t)
			}
			result, haveResult = wasm.NullRef(t), true
		case opRefFunc:
			index, sz, err := leb128.GetVarUint32(expr)
			if err != nil {
				return wasm.Value{}, err
			}
			expr = expr[sz:]
			if index >= uint32(len(funcs)) {
				return wasm.Value{}, InvalidFunctionIndexError(index)
			}
			result, haveResult = wasm.NewFuncRef(funcs[index]), true
		case opEnd:
			if !haveResult {
				return wasm.Value{}, ErrEmptyInitExpr
			}
			return result, nil
		default:
			return wasm.Value{}, wasm.InvalidInitExprOpError(opcode)
		}
	}
}
