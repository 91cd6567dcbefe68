package interpreter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/validate"
)

// An instance holds the index spaces a module's functions execute against,
// plus the passive views of its element and data segments.
type instance struct {
	module  *wasm.Module
	opts    options
	funcs   []exec.Function
	tables  []*exec.Table
	mems    []*exec.Memory
	globals []*exec.Global

	// Segment payloads for table.init and memory.init. A dropped segment
	// holds nil and behaves as empty.
	elems [][]wasm.Value
	data  [][]byte
}

func (i *instance) function(idx uint32) exec.Function {
	if idx >= uint32(len(i.funcs)) {
		panic(exec.TrapUnknownOpcode)
	}
	return i.funcs[idx]
}

func (i *instance) table(idx uint32) *exec.Table {
	if idx >= uint32(len(i.tables)) {
		panic(exec.TrapOutOfBoundsTableAccess)
	}
	return i.tables[idx]
}

func (i *instance) memory(idx uint32) *exec.Memory {
	if idx >= uint32(len(i.mems)) {
		panic(exec.TrapOutOfBoundsMemoryAccess)
	}
	return i.mems[idx]
}

func (i *instance) global(idx uint32) *exec.Global {
	if idx >= uint32(len(i.globals)) {
		panic(exec.TrapUnknownOpcode)
	}
	return i.globals[idx]
}

func (i *instance) dataSegment(idx uint32) []byte {
	if idx >= uint32(len(i.data)) {
		panic(exec.TrapOutOfBoundsMemoryAccess)
	}
	return i.data[idx]
}

func (i *instance) dropDataSegment(idx uint32) {
	if idx >= uint32(len(i.data)) {
		panic(exec.TrapOutOfBoundsMemoryAccess)
	}
	i.data[idx] = nil
}

func (i *instance) elemSegment(idx uint32) []wasm.Value {
	if idx >= uint32(len(i.elems)) {
		panic(exec.TrapOutOfBoundsTableAccess)
	}
	return i.elems[idx]
}

func (i *instance) dropElemSegment(idx uint32) {
	if idx >= uint32(len(i.elems)) {
		panic(exec.TrapOutOfBoundsTableAccess)
	}
	i.elems[idx] = nil
}

// Instantiate validates m, resolves its imports, builds its index spaces,
// applies its element and data segments, and runs its start function. On
// success the returned instance's exports are live.
func Instantiate(m *wasm.Module, imports exec.ImportResolver, opts ...Option) (*exec.Instance, error) {
	if err := validate.ValidateModule(m); err != nil {
		return nil, err
	}

	o := makeOptions(opts)
	inst := &instance{module: m, opts: o}

	var importedGlobals []*exec.Global
	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			fn, err := imports.ResolveFunction(imp.ModuleName, imp.FieldName, m.Types[imp.TypeIndex])
			if err != nil {
				return nil, err
			}
			inst.funcs = append(inst.funcs, fn)
		case wasm.ExternalTable:
			t, err := imports.ResolveTable(imp.ModuleName, imp.FieldName, imp.Table)
			if err != nil {
				return nil, err
			}
			inst.tables = append(inst.tables, t)
		case wasm.ExternalMemory:
			mem, err := imports.ResolveMemory(imp.ModuleName, imp.FieldName, imp.Memory)
			if err != nil {
				return nil, err
			}
			inst.mems = append(inst.mems, mem)
		case wasm.ExternalGlobal:
			g, err := imports.ResolveGlobal(imp.ModuleName, imp.FieldName, imp.Global)
			if err != nil {
				return nil, err
			}
			inst.globals = append(inst.globals, g)
			importedGlobals = append(importedGlobals, g)
		}
	}

	// Local functions join the index space before init expressions run so
	// ref.func can resolve forward references.
	for i, typeIdx := range m.Functions {
		inst.funcs = append(inst.funcs, &function{
			inst:  inst,
			typ:   m.Types[typeIdx],
			index: uint32(m.NumImported(wasm.ExternalFunction) + i),
			body:  m.Bodies[i],
		})
	}

	for _, t := range m.Tables {
		inst.tables = append(inst.tables, exec.NewTable(t.ElemType, t.Limits.Min, limitsMax(t.Limits)))
	}

	for _, mt := range m.Memories {
		inst.mems = append(inst.mems, exec.NewMemory(mt.Limits.Min, limitsMax(mt.Limits)))
	}

	for _, g := range m.Globals {
		init, err := exec.EvalInitExpr(importedGlobals, inst.funcs, g.Init)
		if err != nil {
			return nil, err
		}
		inst.globals = append(inst.globals, exec.NewGlobal(g.Type, init))
	}

	if err := inst.applyElementSegments(importedGlobals); err != nil {
		return nil, err
	}
	if err := inst.applyDataSegments(importedGlobals); err != nil {
		return nil, err
	}

	if m.Start != nil {
		start := inst.funcs[*m.Start]
		if _, err := start.Call(); err != nil {
			return nil, fmt.Errorf("wasm: start function: %w", err)
		}
	}

	o.logger.Debug("module instantiated",
		zap.String("name", o.name),
		zap.Int("functions", len(inst.funcs)),
		zap.Int("exports", len(m.Exports)))

	return exec.NewInstance(o.name, m, inst.funcs, inst.tables, inst.mems, inst.globals), nil
}

func limitsMax(l wasm.Limits) *uint32 {
	if !l.HasMax {
		return nil
	}
	max := l.Max
	return &max
}

func (inst *instance) applyElementSegments(importedGlobals []*exec.Global) error {
	m := inst.module
	inst.elems = make([][]wasm.Value, len(m.Elements))
	for i, seg := range m.Elements {
		values := make([]wasm.Value, len(seg.Funcs))
		for j, funcIdx := range seg.Funcs {
			if funcIdx >= uint32(len(inst.funcs)) {
				return exec.InvalidFunctionIndexError(funcIdx)
			}
			values[j] = wasm.NewFuncRef(inst.funcs[funcIdx])
		}

		if int(seg.TableIndex) >= len(inst.tables) {
			return exec.ErrElementSegmentDoesNotFit
		}
		offset, err := exec.EvalInitExpr(importedGlobals, inst.funcs, seg.Offset)
		if err != nil {
			return err
		}
		if offset.Type() != wasm.ValueTypeI32 {
			return exec.ErrElementSegmentDoesNotFit
		}
		t := inst.tables[seg.TableIndex]
		if err := t.Init(uint32(offset.I32()), values); err != nil {
			return exec.ErrElementSegmentDoesNotFit
		}

		// Active segments are consumed by instantiation; table.init sees
		// them as dropped.
		inst.elems[i] = nil
	}
	return nil
}

func (inst *instance) applyDataSegments(importedGlobals []*exec.Global) error {
	m := inst.module
	inst.data = make([][]byte, len(m.Data))
	for i, seg := range m.Data {
		if int(seg.MemoryIndex) >= len(inst.mems) {
			return exec.ErrDataSegmentDoesNotFit
		}
		offset, err := exec.EvalInitExpr(importedGlobals, inst.funcs, seg.Offset)
		if err != nil {
			return err
		}
		if offset.Type() != wasm.ValueTypeI32 {
			return exec.ErrDataSegmentDoesNotFit
		}
		mem := inst.mems[seg.MemoryIndex]
		if err := mem.InitData(uint64(uint32(offset.I32())), seg.Bytes); err != nil {
			return exec.ErrDataSegmentDoesNotFit
		}

		inst.data[i] = nil
	}
	return nil
}
