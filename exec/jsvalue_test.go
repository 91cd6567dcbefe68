package exec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/js/jstest"
	"github.com/strandjs/wasm/wasm"
)

func TestValueToJSNumbers(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueToJS(ctx, wasm.NewI32(-3))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(-3), v)

	v, err = ValueToJS(ctx, wasm.NewF32(1.5))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(1.5), v)

	v, err = ValueToJS(ctx, wasm.NewF64(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(math.Inf(1)), v)
}

func TestValueToJSI64Boundary(t *testing.T) {
	ctx := jstest.NewContext()

	// 2^53 is still exactly representable as a number.
	v, err := ValueToJS(ctx, wasm.NewI64(1<<53))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(1<<53), v)

	v, err = ValueToJS(ctx, wasm.NewI64(-(1 << 53)))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(-(1 << 53)), v)

	// Anything beyond becomes a BigInt.
	v, err = ValueToJS(ctx, wasm.NewI64(1<<53+1))
	require.NoError(t, err)
	assert.Equal(t, jstest.BigInt(1<<53+1), v)

	v, err = ValueToJS(ctx, wasm.NewI64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, jstest.BigInt(math.MinInt64), v)
}

func TestValueToJSReferences(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueToJS(ctx, wasm.NullRef(wasm.ValueTypeFuncRef))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = ValueToJS(ctx, wasm.NullRef(wasm.ValueTypeExternRef))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// A funcref holding a Function becomes callable.
	v, err = ValueToJS(ctx, wasm.NewFuncRef(constFunc(11)))
	require.NoError(t, err)
	require.True(t, v.IsFunction())
	result, err := v.Call()
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(11), result)

	// An externref holding a JS value unwraps to it.
	obj := jstest.Object{Tag: "x"}
	v, err = ValueToJS(ctx, wasm.NewExternRef(obj))
	require.NoError(t, err)
	assert.Equal(t, obj, v)
}

func TestValueToJSV128(t *testing.T) {
	ctx := jstest.NewContext()
	_, err := ValueToJS(ctx, wasm.NewV128([16]byte{}))
	var typeErr *jstest.TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestValueFromJSI32(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueFromJS(ctx, jstest.Number(-7.9), wasm.ValueTypeI32)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), v.I32())

	// NaN and the infinities truncate to zero.
	v, err = ValueFromJS(ctx, jstest.Number(math.NaN()), wasm.ValueTypeI32)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.I32())

	v, err = ValueFromJS(ctx, jstest.Number(math.Inf(-1)), wasm.ValueTypeI32)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.I32())

	// A BigInt has no i32 coercion and defaults to zero.
	v, err = ValueFromJS(ctx, jstest.BigInt(7), wasm.ValueTypeI32)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.I32())
}

func TestValueFromJSI64(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueFromJS(ctx, jstest.BigInt(math.MaxInt64), wasm.ValueTypeI64)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.I64())

	// Numbers truncate toward zero.
	v, err = ValueFromJS(ctx, jstest.Number(42), wasm.ValueTypeI64)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.I64())

	v, err = ValueFromJS(ctx, jstest.Number(3.5), wasm.ValueTypeI64)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.I64())

	v, err = ValueFromJS(ctx, jstest.Number(math.NaN()), wasm.ValueTypeI64)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.I64())
}

func TestValueFromJSFloats(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueFromJS(ctx, jstest.Number(2.5), wasm.ValueTypeF32)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), v.F32())

	v, err = ValueFromJS(ctx, jstest.Number(-0.25), wasm.ValueTypeF64)
	require.NoError(t, err)
	assert.Equal(t, -0.25, v.F64())

	// BigInts have no float coercion and default to zero.
	v, err = ValueFromJS(ctx, jstest.BigInt(1), wasm.ValueTypeF32)
	require.NoError(t, err)
	assert.Equal(t, float32(0), v.F32())

	v, err = ValueFromJS(ctx, jstest.BigInt(1), wasm.ValueTypeF64)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v.F64())
}

func TestValueFromJSReferences(t *testing.T) {
	ctx := jstest.NewContext()

	v, err := ValueFromJS(ctx, jstest.Null{}, wasm.ValueTypeFuncRef)
	require.NoError(t, err)
	assert.True(t, v.IsNullRef())
	assert.Equal(t, wasm.ValueTypeFuncRef, v.Type())

	v, err = ValueFromJS(ctx, jstest.Null{}, wasm.ValueTypeExternRef)
	require.NoError(t, err)
	assert.True(t, v.IsNullRef())

	// Any non-null value boxes into an externref.
	obj := jstest.Object{Tag: "boxed"}
	v, err = ValueFromJS(ctx, obj, wasm.ValueTypeExternRef)
	require.NoError(t, err)
	assert.Equal(t, wasm.NewExternRef(obj), v)

	// Nothing but null coerces to funcref; the result is the null ref.
	v, err = ValueFromJS(ctx, obj, wasm.ValueTypeFuncRef)
	require.NoError(t, err)
	assert.True(t, v.IsNullRef())
	assert.Equal(t, wasm.ValueTypeFuncRef, v.Type())
}

func TestFunctionToJS(t *testing.T) {
	ctx := jstest.NewContext()
	add := &hostFunc{
		type_: wasm.FunctionType{
			Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
			Results: []wasm.ValueType{wasm.ValueTypeI32},
		},
		fn: func(args ...wasm.Value) ([]wasm.Value, error) {
			return []wasm.Value{wasm.NewI32(args[0].I32() + args[1].I32())}, nil
		},
	}

	fn := FunctionToJS(ctx, add)
	require.True(t, fn.IsFunction())

	result, err := fn.Call(jstest.Number(2), jstest.Number(3))
	require.NoError(t, err)
	assert.Equal(t, jstest.Number(5), result)

	// Wrong arity throws.
	_, err = fn.Call(jstest.Number(2))
	var typeErr *jstest.TypeError
	assert.ErrorAs(t, err, &typeErr)

	// Zero-result functions yield null.
	nop := &hostFunc{
		type_: wasm.FunctionType{},
		fn: func(args ...wasm.Value) ([]wasm.Value, error) {
			return nil, nil
		},
	}
	result, err = FunctionToJS(ctx, nop).Call()
	require.NoError(t, err)
	assert.True(t, result.IsNull())
}
