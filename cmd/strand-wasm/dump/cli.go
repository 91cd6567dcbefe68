package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandjs/wasm/wasm"
)

// functionNames maps function indices to import field names and export names
// so dumps can label functions with something better than an index.
func functionNames(m *wasm.Module) map[uint32]string {
	names := map[uint32]string{}
	funcIdx := uint32(0)
	for _, imp := range m.Imports {
		if imp.Kind == wasm.ExternalFunction {
			names[funcIdx] = imp.ModuleName + "." + imp.FieldName
			funcIdx++
		}
	}
	for _, exp := range m.Exports {
		if exp.Kind == wasm.ExternalFunction {
			names[exp.Index] = exp.Name
		}
	}
	return names
}

func dumpModule(w io.Writer, m *wasm.Module) error {
	for i, t := range m.Types {
		fmt.Fprintf(w, "type %d: %v\n", i, t)
	}
	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			fmt.Fprintf(w, "import func %s.%s: %v\n", imp.ModuleName, imp.FieldName, m.Types[imp.TypeIndex])
		case wasm.ExternalTable:
			fmt.Fprintf(w, "import table %s.%s: %v %s\n", imp.ModuleName, imp.FieldName, imp.Table.Limits, imp.Table.ElemType)
		case wasm.ExternalMemory:
			fmt.Fprintf(w, "import memory %s.%s: %v\n", imp.ModuleName, imp.FieldName, imp.Memory.Limits)
		case wasm.ExternalGlobal:
			fmt.Fprintf(w, "import global %s.%s: %s\n", imp.ModuleName, imp.FieldName, imp.Global.Type)
		}
	}

	names := functionNames(m)
	numImported := uint32(m.NumImported(wasm.ExternalFunction))
	for i := range m.Functions {
		idx := numImported + uint32(i)
		body := &m.Bodies[i]
		name := names[idx]
		if name == "" {
			name = fmt.Sprintf("func[%d]", idx)
		}
		fmt.Fprintf(w, "func %s: %v, %d locals, %d body bytes\n", name, m.Types[m.Functions[i]], body.NumLocals(), len(body.Code))
	}

	for _, t := range m.Tables {
		fmt.Fprintf(w, "table: %v %s\n", t.Limits, t.ElemType)
	}
	for _, mem := range m.Memories {
		fmt.Fprintf(w, "memory: %v\n", mem.Limits)
	}
	for i, g := range m.Globals {
		mut := "const"
		if g.Type.Mutable {
			mut = "var"
		}
		fmt.Fprintf(w, "global %d: %s %s\n", i, mut, g.Type.Type)
	}
	for _, exp := range m.Exports {
		fmt.Fprintf(w, "export %q: %s %d\n", exp.Name, exp.Kind, exp.Index)
	}
	if m.Start != nil {
		fmt.Fprintf(w, "start: func %d\n", *m.Start)
	}
	for i, seg := range m.Elements {
		fmt.Fprintf(w, "elem %d: table %d, %d entries\n", i, seg.TableIndex, len(seg.Funcs))
	}
	for i, seg := range m.Data {
		fmt.Fprintf(w, "data %d: memory %d, %d bytes\n", i, seg.MemoryIndex, len(seg.Bytes))
	}
	for _, c := range m.Customs {
		fmt.Fprintf(w, "custom %q: %d bytes\n", c.Name, len(c.Data))
	}
	return nil
}

func Command() *cobra.Command {
	var stats bool

	command := &cobra.Command{
		Use:   "dump [path to module]",
		Short: "Dump WebAssembly modules",
		Long:  "Dump a summary of a WebAssembly module's sections and functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := wasm.DecodeModule(buf)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()

			if stats {
				return dumpStats(w, m)
			}
			return dumpModule(w, m)
		},
	}

	command.PersistentFlags().BoolVarP(&stats, "stats", "s", false, "dump per-function statistics in CSV format")

	return command
}
