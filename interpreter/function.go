package interpreter

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm"
)

// ExecutionStats counts the calls into a bytecode function and the work
// those calls performed.
type ExecutionStats struct {
	CallCount            uint64
	InstructionsExecuted uint64
	Traps                uint64
	TotalExecutionTime   time.Duration
}

// An ArgumentError reports a call whose arguments do not match the
// function's declared type.
type ArgumentError struct {
	Index    int
	Expected wasm.ValueType
	Actual   wasm.ValueType
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("wasm: argument %d: expected %v, got %v", e.Index, e.Expected, e.Actual)
}

// hostError carries an error returned by a host function across the
// interpreter's unwind to the outermost Call.
type hostError struct {
	err error
}

// A function is a bytecode function bound to its instance.
type function struct {
	inst  *instance
	typ   wasm.FunctionType
	index uint32
	body  wasm.FunctionBody

	mu    sync.Mutex
	stats ExecutionStats
}

func (f *function) Type() wasm.FunctionType {
	return f.typ
}

// Call executes the function. Traps unwind the interpreter as panics and
// are converted to errors here; each invocation gets fresh frames, so a
// trapped function can be called again.
func (f *function) Call(args ...wasm.Value) (results []wasm.Value, err error) {
	if len(args) != len(f.typ.Params) {
		return nil, fmt.Errorf("wasm: expected %d arguments, got %d", len(f.typ.Params), len(args))
	}
	for i, arg := range args {
		if arg.Type() != f.typ.Params[i] {
			return nil, &ArgumentError{Index: i, Expected: f.typ.Params[i], Actual: arg.Type()}
		}
	}

	start := time.Now()
	defer func() {
		x := recover()
		if x != nil {
			switch t := x.(type) {
			case exec.Trap:
				err = t
			case hostError:
				err = t.err
			default:
				if rte, ok := x.(runtime.Error); ok {
					if trap, ok := exec.TranslateRuntimeError(rte); ok {
						err = trap
						break
					}
				}
				panic(x)
			}
		}

		f.mu.Lock()
		f.stats.CallCount++
		f.stats.TotalExecutionTime += time.Since(start)
		if err != nil {
			f.stats.Traps++
		}
		f.mu.Unlock()
	}()

	m := machine{inst: f.inst}
	results = m.call(f, args)
	return results, nil
}

// Stats returns a snapshot of the function's execution statistics.
func (f *function) Stats() ExecutionStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *function) addInstructions(n uint64) {
	f.mu.Lock()
	f.stats.InstructionsExecuted += n
	f.mu.Unlock()
}
