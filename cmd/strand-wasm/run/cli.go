package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/interpreter"
	"github.com/strandjs/wasm/wasm"
)

func parseValue(s string, type_ wasm.ValueType) (wasm.Value, error) {
	switch type_ {
	case wasm.ValueTypeI32:
		if i, err := strconv.ParseInt(s, 0, 32); err == nil {
			return wasm.NewI32(int32(i)), nil
		}
		u, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return wasm.Value{}, fmt.Errorf("malformed i32 argument %q", s)
		}
		return wasm.NewI32(int32(u)), nil
	case wasm.ValueTypeI64:
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return wasm.NewI64(i), nil
		}
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return wasm.Value{}, fmt.Errorf("malformed i64 argument %q", s)
		}
		return wasm.NewI64(int64(u)), nil
	case wasm.ValueTypeF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return wasm.Value{}, fmt.Errorf("malformed f32 argument %q", s)
		}
		return wasm.NewF32(float32(f)), nil
	case wasm.ValueTypeF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return wasm.Value{}, fmt.Errorf("malformed f64 argument %q", s)
		}
		return wasm.NewF64(f), nil
	default:
		return wasm.Value{}, fmt.Errorf("cannot pass %s argument from the command line", type_)
	}
}

func Command() *cobra.Command {
	var invoke string
	var skipUnknown bool
	var debug bool
	var traceMemory bool

	command := &cobra.Command{
		Use:   "run [path to module] [arguments]",
		Short: "Run WebAssembly modules",
		Long:  "Instantiate a WebAssembly module and invoke one of its exported functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("expected at least one argument")
			}

			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := wasm.DecodeModule(buf)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if debug {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return err
				}
				defer logger.Sync()
			}

			ext := filepath.Ext(args[0])
			name := filepath.Base(args[0][: len(args[0])-len(ext)])

			policy := interpreter.PolicyStrict
			if skipUnknown {
				policy = interpreter.PolicySkip
			}

			instance, err := interpreter.Instantiate(m, exec.MapResolver{},
				interpreter.WithName(name),
				interpreter.WithLogger(logger),
				interpreter.WithPolicy(policy))
			if err != nil {
				return err
			}

			if traceMemory {
				for _, memName := range instance.MemoryExports() {
					mem, err := instance.GetMemory(memName)
					if err != nil {
						return err
					}
					mem.SetTrace(logger)
				}
			}

			if invoke == "" {
				return nil
			}

			fn, err := instance.GetFunction(invoke)
			if err != nil {
				return err
			}

			params := fn.Type().Params
			if len(args)-1 != len(params) {
				return fmt.Errorf("%s expects %d arguments, got %d", invoke, len(params), len(args)-1)
			}
			values := make([]wasm.Value, len(params))
			for i, s := range args[1:] {
				v, err := parseValue(s, params[i])
				if err != nil {
					return err
				}
				values[i] = v
			}

			results, err := fn.Call(values...)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Println(r)
			}
			return nil
		},
	}

	command.PersistentFlags().StringVarP(&invoke, "invoke", "i", "", "name of the exported function to invoke")
	command.PersistentFlags().BoolVar(&skipUnknown, "skip-unknown", false, "skip unknown opcodes instead of raising an error")
	command.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	command.PersistentFlags().BoolVarP(&traceMemory, "trace-memory", "t", false, "log every linear memory access. Implies -d to be useful.")

	return command
}
