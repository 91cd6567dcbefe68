package dump

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/code"
)

type functionRow struct {
	Function         string `csv:"function"`
	Funcidx          int    `csv:"funcidx"`
	In               int    `csv:"in"`
	Out              int    `csv:"out"`
	LocalCount       int    `csv:"local count"`
	BodyBytes        int    `csv:"body bytes"`
	InstructionCount int    `csv:"instruction count"`
	MaxNesting       int    `csv:"max nesting"`
	Control          int    `csv:"control"`
	Parametric       int    `csv:"parametric"`
	Variable         int    `csv:"variable"`
	MemoryAccess     int    `csv:"memory access"`
	Constant         int    `csv:"constant"`
	Numeric          int    `csv:"numeric"`
	Reference        int    `csv:"reference"`
	Bulk             int    `csv:"bulk"`
	Vector           int    `csv:"vector"`
	Atomic           int    `csv:"atomic"`
}

func dumpStats(w io.Writer, m *wasm.Module) error {
	csvWriter := csv.NewWriter(w)
	encoder := csvutil.NewEncoder(csvWriter)

	names := functionNames(m)
	numImported := m.NumImported(wasm.ExternalFunction)
	for i := range m.Functions {
		idx := numImported + i
		body := &m.Bodies[i]
		type_ := m.Types[m.Functions[i]]

		name := names[uint32(idx)]
		if name == "" {
			name = fmt.Sprintf("func[%d]", idx)
		}

		row := functionRow{
			Function:   name,
			Funcidx:    idx,
			In:         len(type_.Params),
			Out:        len(type_.Results),
			LocalCount: body.NumLocals(),
			BodyBytes:  len(body.Code),
		}
		if err := countInstructions(&row, body.Code); err != nil {
			return err
		}
		if err := encoder.Encode(row); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func countInstructions(row *functionRow, body []byte) error {
	nesting := 0
	for pc := 0; pc < len(body); {
		instr, next, err := code.Next(body, pc)
		if err != nil {
			return err
		}
		pc = next

		row.InstructionCount++
		switch {
		case instr.Op == code.OpBlock || instr.Op == code.OpLoop || instr.Op == code.OpIf:
			nesting++
			if nesting > row.MaxNesting {
				row.MaxNesting = nesting
			}
			row.Control++
		case instr.Op == code.OpEnd:
			if nesting > 0 {
				nesting--
			}
			row.Control++
		case instr.Op <= code.OpCallIndirect:
			row.Control++
		case instr.Op == code.OpDrop || instr.Op == code.OpSelect || instr.Op == code.OpSelectT:
			row.Parametric++
		case instr.Op >= code.OpLocalGet && instr.Op <= code.OpGlobalSet,
			instr.Op == code.OpTableGet || instr.Op == code.OpTableSet:
			row.Variable++
		case instr.Op >= code.OpI32Load && instr.Op <= code.OpMemoryGrow:
			row.MemoryAccess++
		case instr.Op >= code.OpI32Const && instr.Op <= code.OpF64Const:
			row.Constant++
		case instr.Op >= code.OpRefNull && instr.Op <= code.OpRefFunc:
			row.Reference++
		case instr.Op == code.OpPrefix:
			row.Bulk++
		case instr.Op == code.OpVectorPrefix:
			row.Vector++
		case instr.Op == code.OpAtomicPrefix:
			row.Atomic++
		default:
			row.Numeric++
		}
	}
	return nil
}
