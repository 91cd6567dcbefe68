package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/js"
	"github.com/strandjs/wasm/js/jstest"
	"github.com/strandjs/wasm/wasm"
)

func TestNewJSFunctionRejectsNonCallable(t *testing.T) {
	ctx := jstest.NewContext()
	_, err := NewJSFunction(ctx, jstest.Number(1), wasm.FunctionType{})
	var typeErr *jstest.TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestNewJSFunctionRejectsMultipleResults(t *testing.T) {
	ctx := jstest.NewContext()
	fn := jstest.Function(func(args ...js.Value) (js.Value, error) {
		return jstest.Null{}, nil
	})
	_, err := NewJSFunction(ctx, fn, wasm.FunctionType{
		Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
	})
	var typeErr *jstest.TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestJSFunctionCall(t *testing.T) {
	ctx := jstest.NewContext()
	double := jstest.Function(func(args ...js.Value) (js.Value, error) {
		return jstest.Number(args[0].Number() * 2), nil
	})

	fn, err := NewJSFunction(ctx, double, wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	})
	require.NoError(t, err)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, fn.Type().Params)

	results, err := fn.Call(wasm.NewI32(21))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(42), results[0].I32())

	stats := fn.Stats()
	assert.Equal(t, uint64(1), stats.CallCount)
	assert.Equal(t, uint64(1), stats.SuccessfulCalls)
	assert.Equal(t, uint64(0), stats.TypeErrors)
}

func TestJSFunctionCallNoResults(t *testing.T) {
	ctx := jstest.NewContext()
	called := false
	fn, err := NewJSFunction(ctx, jstest.Function(func(args ...js.Value) (js.Value, error) {
		called = true
		return jstest.Null{}, nil
	}), wasm.FunctionType{})
	require.NoError(t, err)

	results, err := fn.Call()
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, called)
}

func TestJSFunctionArityAndTypeErrors(t *testing.T) {
	ctx := jstest.NewContext()
	fn, err := NewJSFunction(ctx, jstest.Function(func(args ...js.Value) (js.Value, error) {
		return jstest.Null{}, nil
	}), wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}})
	require.NoError(t, err)

	var typeErr *jstest.TypeError

	_, err = fn.Call()
	assert.ErrorAs(t, err, &typeErr)

	_, err = fn.Call(wasm.NewI64(1))
	assert.ErrorAs(t, err, &typeErr)

	stats := fn.Stats()
	assert.Equal(t, uint64(2), stats.CallCount)
	assert.Equal(t, uint64(2), stats.TypeErrors)
	assert.Equal(t, uint64(0), stats.SuccessfulCalls)
}

func TestJSFunctionResultConversionError(t *testing.T) {
	// No JS value converts to v128, so the result conversion fails.
	ctx := jstest.NewContext()
	fn, err := NewJSFunction(ctx, jstest.Function(func(args ...js.Value) (js.Value, error) {
		return jstest.Number(1.5), nil
	}), wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeV128}})
	require.NoError(t, err)

	_, err = fn.Call()
	var typeErr *jstest.TypeError
	assert.ErrorAs(t, err, &typeErr)

	stats := fn.Stats()
	assert.Equal(t, uint64(1), stats.TypeErrors)
	assert.Equal(t, uint64(0), stats.SuccessfulCalls)
}

func TestJSFunctionPropagatesCalleeError(t *testing.T) {
	ctx := jstest.NewContext()
	boom := jstest.Function(func(args ...js.Value) (js.Value, error) {
		return nil, ctx.TypeError("boom")
	})
	fn, err := NewJSFunction(ctx, boom, wasm.FunctionType{})
	require.NoError(t, err)

	_, err = fn.Call()
	assert.EqualError(t, err, "TypeError: boom")
}
