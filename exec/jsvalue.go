package exec

import (
	"math"

	"github.com/strandjs/wasm/js"
	"github.com/strandjs/wasm/wasm"
)

// maxSafeInteger is the largest integer a JS number represents exactly.
const maxSafeInteger = 1 << 53

// ValueToJS converts a WASM value to a JS value constructed through ctx.
//
// i64 values become numbers when they fit in the safe-integer range and
// BigInts otherwise, so callers round-trip small counters without BigInt
// churn. Function references materialize as callable JS functions bound to
// the referenced function. v128 values have no JS representation.
func ValueToJS(ctx js.Context, v wasm.Value) (js.Value, error) {
	switch v.Type() {
	case wasm.ValueTypeI32:
		return ctx.Number(float64(v.I32())), nil
	case wasm.ValueTypeI64:
		n := v.I64()
		if n >= -maxSafeInteger && n <= maxSafeInteger {
			return ctx.Number(float64(n)), nil
		}
		return ctx.BigInt(n), nil
	case wasm.ValueTypeF32:
		return ctx.Number(float64(v.F32())), nil
	case wasm.ValueTypeF64:
		return ctx.Number(v.F64()), nil
	case wasm.ValueTypeFuncRef:
		if v.IsNullRef() {
			return ctx.Null(), nil
		}
		fn, ok := v.Ref().(Function)
		if !ok {
			return nil, ctx.TypeError("funcref does not hold a callable function")
		}
		return FunctionToJS(ctx, fn), nil
	case wasm.ValueTypeExternRef:
		if v.IsNullRef() {
			return ctx.Null(), nil
		}
		if jv, ok := v.Ref().(js.Value); ok {
			return jv, nil
		}
		return nil, ctx.TypeError("externref does not hold a JS value")
	default:
		return nil, ctx.TypeError("%v values cannot cross into JS", v.Type())
	}
}

// FunctionToJS wraps a WASM function as a callable JS function. Arguments
// are converted per the function's parameter types; a single result converts
// back and zero results yield null. Calling with the wrong arity throws a
// TypeError.
func FunctionToJS(ctx js.Context, fn Function) js.Value {
	return ctx.Function(func(args ...js.Value) (js.Value, error) {
		type_ := fn.Type()
		if len(args) != len(type_.Params) {
			return nil, ctx.TypeError("expected %d arguments, got %d", len(type_.Params), len(args))
		}
		wasmArgs := make([]wasm.Value, len(args))
		for i, arg := range args {
			v, err := ValueFromJS(ctx, arg, type_.Params[i])
			if err != nil {
				return nil, err
			}
			wasmArgs[i] = v
		}
		results, err := fn.Call(wasmArgs...)
		if err != nil {
			return nil, err
		}
		switch len(results) {
		case 0:
			return ctx.Null(), nil
		case 1:
			return ValueToJS(ctx, results[0])
		default:
			return nil, ctx.TypeError("function returns %d values", len(results))
		}
	})
}

// ValueFromJS converts a JS value to a WASM value of the target type.
//
// Numbers coerce numerically: integer targets truncate toward zero with NaN
// and the infinities becoming zero, and BigInts convert to i64 exactly. A
// value with no numeric coercion for its target (a BigInt for i32, f32, or
// f64; any non-null value for funcref) yields the target type's zero value.
// Null converts to the null reference for reference targets, and any JS
// value boxes into an externref.
func ValueFromJS(ctx js.Context, v js.Value, target wasm.ValueType) (wasm.Value, error) {
	switch target {
	case wasm.ValueTypeI32:
		if v.IsBigInt() {
			return wasm.NewI32(0), nil
		}
		return wasm.NewI32(int32(truncateToInt64(v.Number()))), nil
	case wasm.ValueTypeI64:
		if v.IsBigInt() {
			return wasm.NewI64(v.Int64()), nil
		}
		return wasm.NewI64(truncateToInt64(v.Number())), nil
	case wasm.ValueTypeF32:
		if v.IsBigInt() {
			return wasm.NewF32(0), nil
		}
		return wasm.NewF32(float32(v.Number())), nil
	case wasm.ValueTypeF64:
		if v.IsBigInt() {
			return wasm.NewF64(0), nil
		}
		return wasm.NewF64(v.Number()), nil
	case wasm.ValueTypeFuncRef, wasm.ValueTypeExternRef:
		if v.IsNull() {
			return wasm.NullRef(target), nil
		}
		if target == wasm.ValueTypeExternRef {
			return wasm.NewExternRef(v), nil
		}
		return wasm.NullRef(target), nil
	default:
		return wasm.Value{}, ctx.TypeError("cannot convert a JS value to %v", target)
	}
}

// truncateToInt64 truncates a JS number toward zero, mapping NaN and the
// infinities to zero.
func truncateToInt64(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Trunc(f))
}
