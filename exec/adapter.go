package exec

import (
	"sync"
	"time"

	"github.com/strandjs/wasm/js"
	"github.com/strandjs/wasm/wasm"
)

// AdapterStats counts the calls made through a JSFunction and tracks a
// rolling average of successful call durations.
type AdapterStats struct {
	CallCount            uint64
	TypeErrors           uint64
	SuccessfulCalls      uint64
	AverageExecutionTime time.Duration
}

// A JSFunction adapts a callable JS value to the Function interface so
// imports can be satisfied by host functions. Each call validates argument
// arity and types against the declared function type before crossing into
// JS.
type JSFunction struct {
	ctx js.Context
	fn  js.Value
	typ wasm.FunctionType

	mu    sync.Mutex
	stats AdapterStats
}

// NewJSFunction wraps fn as a WASM function of the given type. It fails if
// fn is not callable or if the type declares more than one result: a JS
// function returns a single value, so multi-result types cannot be adapted.
func NewJSFunction(ctx js.Context, fn js.Value, type_ wasm.FunctionType) (*JSFunction, error) {
	if !fn.IsFunction() {
		return nil, ctx.TypeError("import target is not callable")
	}
	if len(type_.Results) > 1 {
		return nil, ctx.TypeError("cannot adapt a JS function to %d results", len(type_.Results))
	}
	return &JSFunction{ctx: ctx, fn: fn, typ: type_}, nil
}

// Type returns the declared function type.
func (f *JSFunction) Type() wasm.FunctionType {
	return f.typ
}

// Call validates args against the declared parameter types, converts them,
// invokes the JS function, and converts the result back. Arity and type
// violations surface as TypeErrors and count toward the adapter's stats.
func (f *JSFunction) Call(args ...wasm.Value) ([]wasm.Value, error) {
	f.mu.Lock()
	f.stats.CallCount++
	f.mu.Unlock()

	if len(args) != len(f.typ.Params) {
		return nil, f.typeError("expected %d arguments, got %d", len(f.typ.Params), len(args))
	}
	jsArgs := make([]js.Value, len(args))
	for i, arg := range args {
		if arg.Type() != f.typ.Params[i] {
			return nil, f.typeError("argument %d: expected %v, got %v", i, f.typ.Params[i], arg.Type())
		}
		v, err := ValueToJS(f.ctx, arg)
		if err != nil {
			return nil, f.countTypeError(err)
		}
		jsArgs[i] = v
	}

	start := time.Now()
	result, err := f.fn.Call(jsArgs...)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	var results []wasm.Value
	if len(f.typ.Results) == 1 {
		v, err := ValueFromJS(f.ctx, result, f.typ.Results[0])
		if err != nil {
			return nil, f.countTypeError(err)
		}
		results = []wasm.Value{v}
	}

	f.mu.Lock()
	f.stats.SuccessfulCalls++
	n := time.Duration(f.stats.SuccessfulCalls)
	f.stats.AverageExecutionTime += (elapsed - f.stats.AverageExecutionTime) / n
	f.mu.Unlock()

	return results, nil
}

// Stats returns a snapshot of the adapter's call statistics.
func (f *JSFunction) Stats() AdapterStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *JSFunction) typeError(format string, args ...interface{}) error {
	return f.countTypeError(f.ctx.TypeError(format, args...))
}

func (f *JSFunction) countTypeError(err error) error {
	f.mu.Lock()
	f.stats.TypeErrors++
	f.mu.Unlock()
	return err
}
